// Command logmilterd is a demo milter that logs all milter communication,
// tags accepted messages with an X-Milter-Scanned header and replaces their
// body with a copy that has a footer appended.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	milter "github.com/milterd/milterd"
)

func main() {
	transport := flag.String("transport", "tcp", "transport to use for the milter connection: tcp, tcp4, tcp6 or unix")
	address := flag.String("address", "127.0.0.1:0", "transport address: path for 'unix', address:port for 'tcp'")
	readTimeout := flag.Duration("read-timeout", 10*time.Second, "per-packet read timeout")
	writeTimeout := flag.Duration("write-timeout", 10*time.Second, "per-packet write timeout")
	reuseAddr := flag.Bool("reuse-addr", true, "set SO_REUSEADDR on the listening socket")
	flag.Parse()

	if *transport == "unix" {
		_ = os.Remove(*address)
	}

	server := milter.NewServer(
		milter.WithHandler(newLogMilter),
		milter.WithReadTimeout(*readTimeout),
		milter.WithWriteTimeout(*writeTimeout),
		milter.WithReuseAddr(*reuseAddr),
	)

	socket, err := server.Listen(*transport, *address)
	if err != nil {
		log.Fatal(err)
	}
	defer func(socket net.Listener) {
		_ = socket.Close()
	}(socket)

	if *transport == "unix" {
		if err := os.Chmod(*address, 0660); err != nil {
			log.Fatal(err)
		}
		defer func(name string) {
			_ = os.Remove(name)
		}(*address)
	}

	var wgDone sync.WaitGroup
	wgDone.Add(1)
	go func(socket net.Listener) {
		if err := server.Serve(socket); err != nil && err != milter.ErrServerClosed {
			log.Println(err)
		}
		wgDone.Done()
	}(socket)

	log.Printf("listening on %s:%s", socket.Addr().Network(), socket.Addr().String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Println(err)
		}
	}()

	wgDone.Wait()
}
