package discord

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type opcode uint32

const (
	opHandshake opcode = 0
	opFrame     opcode = 1
	opClose     opcode = 2
	opPing      opcode = 3
	opPong      opcode = 4
)

const (
	maxFrameSize = 64 << 10
	ioTimeout    = 5 * time.Second
)

// ErrNoSocket is returned when no Discord client is listening.
var ErrNoSocket = errors.New("discord ipc socket not found")

// socketDirs lists the directories Discord creates its socket in.
func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			dirs = append(dirs, v)
		}
	}
	dirs = append(dirs, "/tmp")

	// Flatpak and snap installs nest the socket one level deeper.
	var out []string
	for _, d := range dirs {
		out = append(out, d,
			filepath.Join(d, "app", "com.discordapp.Discord"),
			filepath.Join(d, "snap.discord"),
		)
	}
	return out
}

// dialSocket connects to the first discord-ipc-N socket that accepts.
func dialSocket(dirs []string) (net.Conn, error) {
	for _, dir := range dirs {
		for i := range 10 {
			path := filepath.Join(dir, "discord-ipc-"+strconv.Itoa(i))
			conn, err := net.DialTimeout("unix", path, time.Second)
			if err == nil {
				return conn, nil
			}
		}
	}
	return nil, ErrNoSocket
}

// writeFrame sends one opcode-prefixed JSON frame.
func writeFrame(w io.Writer, op opcode, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(op))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[8:], body)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readFrame reads one frame and returns its opcode and raw JSON body.
func readFrame(r io.Reader) (opcode, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}
	op := opcode(binary.LittleEndian.Uint32(header[0:4]))
	n := binary.LittleEndian.Uint32(header[4:8])
	if n > maxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("read frame body: %w", err)
	}
	return op, body, nil
}
