package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// AuthCallbackPort is the port of the local callback server.
const AuthCallbackPort = 9847

// ErrAuthTimeout is returned when the user did not authorize in time.
var ErrAuthTimeout = errors.New("timed out waiting for authorization")

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>presence - Last.fm</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>`

// AuthServer receives the token Last.fm redirects back with.
type AuthServer struct {
	server *http.Server
	addr   string
	tokens chan string
	done   chan struct{}
}

// StartAuthServer listens on addr, 127.0.0.1:9847 when empty.
func StartAuthServer(addr string) (*AuthServer, error) {
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", AuthCallbackPort)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	as := &AuthServer{
		addr:   ln.Addr().String(),
		tokens: make(chan string, 1),
		done:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", as.handleCallback)
	as.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = as.server.Serve(ln)
		close(as.done)
	}()
	return as, nil
}

func (as *AuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	w.Header().Set("Content-Type", "text/html")
	if token == "" {
		fmt.Fprintf(w, callbackPage, "Authorization failed", "No token received. Please try again.")
		return
	}
	fmt.Fprintf(w, callbackPage, "Authorization successful", "You can close this window.")

	select {
	case as.tokens <- token:
	default:
	}
}

// CallbackURL is the URL to pass to AuthURL.
func (as *AuthServer) CallbackURL() string {
	return "http://" + as.addr + "/callback"
}

// Wait blocks until a token arrives, ctx ends or timeout elapses.
func (as *AuthServer) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case token := <-as.tokens:
		return token, nil
	case <-timer.C:
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown stops the server.
func (as *AuthServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = as.server.Shutdown(ctx)
	<-as.done
}

// OpenBrowser opens url in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
