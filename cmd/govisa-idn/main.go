// Command govisa-idn opens a VISA resource, sends *IDN?, and prints the
// reply. It is a minimal smoke test for the transport layer, in the style
// of the teacher's examples/device/device.go.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/session"
)

var log logger.Logger

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: govisa-idn <resource-string>")
		os.Exit(2)
	}
	rsrc := os.Args[1]

	os.Setenv("ENV", "development")
	log = logger.NewSlog(logger.InfoLevel, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := session.Open(ctx, rsrc, session.WithTimeout(2000))
	if err != nil {
		log.Fatal("open failed", "resource", rsrc, "err", err)
	}
	defer func() {
		if err := session.Close(h); err != nil {
			log.Error("close failed", "err", err)
		}
	}()

	s, err := session.Get(h)
	if err != nil {
		log.Fatal("lookup failed", "err", err)
	}

	if _, _, err := s.Write(ctx, []byte("*IDN?\n")); err != nil {
		log.Fatal("write failed", "err", err)
	}

	buf := make([]byte, 256)
	n, kind, err := s.Read(ctx, buf)
	if err != nil {
		log.Fatal("read failed", "err", err)
	}

	log.Info("received identity", "resource", rsrc, "kind", kind.String(), "reply", string(buf[:n]))
	fmt.Println(string(buf[:n]))
}
