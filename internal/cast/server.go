package cast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hammamikhairi/bearwithme/internal/logger"
)

// clipServer serves one WAV clip from memory so a cast device on the LAN
// can fetch it. It listens on an ephemeral port on all interfaces.
type clipServer struct {
	srv  *http.Server
	ln   net.Listener
	path string
	log  *logger.Logger
}

func serveClip(wav []byte, name string, log *logger.Logger) (*clipServer, error) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return nil, fmt.Errorf("clip server: %w", err)
	}

	path := "/" + name
	modTime := time.Now()
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		http.ServeContent(w, r, name, modTime, bytes.NewReader(wav))
	})

	s := &clipServer{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:   ln,
		path: path,
		log:  log,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("clip server: %v", err)
		}
	}()
	return s, nil
}

// URL returns the clip URL as seen from host.
func (s *clipServer) URL(host string) string {
	port := s.ln.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, strconv.Itoa(port)), s.path)
}

// Close shuts the server down. Shutdown noise is not an error.
func (s *clipServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("clip server shutdown: %v", err)
	}
}

// lanIP returns the local address used to reach probe. Dialling UDP sends
// no packets; it only selects the outbound interface.
func lanIP(probe string) (string, error) {
	conn, err := net.Dial("udp", probe)
	if err != nil {
		return "", fmt.Errorf("finding LAN address: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
