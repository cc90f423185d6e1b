// Package proc manages child processes as line-oriented message sources.
//
// A Controller owns one child process: it spawns it, wraps the three
// standard streams in non-blocking buffered handles, parses output into
// delimited lines and feeds them as tagged Messages into a FIFO queue the
// caller drains with Recv. Termination is fire-and-forget (Terminate);
// Join blocks until the child has been reaped, after which the controller
// is back in the ready state and may be launched again.
//
// A Group aggregates several not-yet-launched controllers behind one
// merged queue, tagging each message with the member it came from.
//
// All stream I/O is driven by a reactor loop; the only blocking calls
// exposed to callers are Recv and Join, which park only the calling
// goroutine.
//
// Example:
//
//	c := proc.New("cat", "cat", nil)
//	if err := c.Launch(); err != nil {
//	    log.Fatal(err)
//	}
//	c.Send("hello world")
//	msg, _ := c.Recv()
//	fmt.Println(msg.Text) // "hello world"
//	c.Terminate()
//	c.Join()
package proc
