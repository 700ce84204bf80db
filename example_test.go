// SPDX-License-Identifier: GPL-3.0-or-later

package restworker_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/bassosimone/restworker"
	"github.com/bassosimone/restworker/evloop"
	"github.com/bassosimone/restworker/jsondoc"
	"github.com/bassosimone/runtimex"
)

// This example serves a single resource and fetches it.
func Example() {
	// Register a document whose values are read at each request
	greeting := "world"
	doc := jsondoc.New(jsondoc.Object(
		jsondoc.Pair("hello", jsondoc.Ptr(&greeting)),
	))
	listener := restworker.NewListener(restworker.NewConfig(), restworker.DefaultSLogger())
	runtimex.Assert(listener.RegisterResource("/hello", doc, nil) == nil)

	// Bind to a random port and serve using a loop
	runtimex.Assert(listener.Bind("127.0.0.1", "0", 16) == nil)
	loop := evloop.New()
	runtimex.Assert(listener.Start(loop) == nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	// Issue a request and read the response until the server closes
	conn := runtimex.PanicOnError1(net.Dial("tcp", listener.Addr().String()))
	defer conn.Close()
	runtimex.Assert(conn.SetDeadline(time.Now().Add(5*time.Second)) == nil)
	runtimex.PanicOnError1(conn.Write([]byte("GET /hello HTTP/1.1\r\n\r\n")))
	data := runtimex.PanicOnError1(io.ReadAll(conn))

	statusLine, rest, _ := strings.Cut(string(data), "\r\n")
	_, body, _ := strings.Cut(rest, "\r\n\r\n")
	fmt.Println(statusLine)
	fmt.Print(strings.TrimSuffix(body, "\r\n") + "\n")

	// Stop the loop and then destroy the listener
	cancel()
	<-done
	listener.Destroy()

	// Output:
	// HTTP/1.1 200 OK
	// {"hello":"world"}
}
