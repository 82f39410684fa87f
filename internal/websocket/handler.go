package websocket

import "notechat-be/internal/pkg/logger"

// ServeWs runs one authenticated connection to completion: it registers the
// client, pumps frames both ways, and returns once both pumps have exited.
func ServeWs(hub Broker, conn Conn, userID int64, opts ClientOptions, log logger.ILogger) {
	client := NewClient(hub, conn, userID, opts, log)
	hub.Register(userID, client)

	// The connection is released when the caller returns, so the writer must
	// be finished before that.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writePump()
	}()
	client.readPump()
	<-writerDone
}
