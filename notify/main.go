package notify

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/moyoez/localstore-go/tool"
	"github.com/moyoez/localstore-go/types"
)

// MaxPayloadSize is the largest notification accepted by the listener (32KB).
const MaxPayloadSize = 32 * 1024

// MaxNotifyFailedIds caps failedFileIds in queue_drained so the payload stays under MaxPayloadSize.
const MaxNotifyFailedIds = 20

var (
	// DefaultUnixSocketPath is used when no socket path is configured.
	DefaultUnixSocketPath = "/tmp/localstore-notify.sock"
	// UnixSocketTimeout bounds dial, write and reply read of one notification.
	UnixSocketTimeout = 3 * time.Second
)

// SendNotification sends one notification to the unix socket listener at socketPath.
func SendNotification(notification *types.Notification, socketPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), UnixSocketTimeout)
	defer cancel()
	return SendNotificationContext(ctx, notification, socketPath)
}

// SendNotificationContext frames notification as a 4 byte little-endian length followed by
// sonic JSON, writes it to the socket and checks the optional JSON reply for an "error" key.
func SendNotificationContext(ctx context.Context, notification *types.Notification, socketPath string) error {
	if socketPath == "" {
		socketPath = DefaultUnixSocketPath
	}
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return fmt.Errorf("unix socket not found: %s", socketPath)
	}

	frame, err := encodeFrame(notification)
	if err != nil {
		return err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to Unix socket %s: %v", socketPath, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close Unix socket connection: %v", err)
		}
	}()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(UnixSocketTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		tool.DefaultLogger.Errorf("Failed to set deadline: %v", err)
	}

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write notification to Unix socket: %v", err)
	}
	tool.DefaultLogger.Debugf("[UnixSocket] Sent %d bytes: %s", len(frame)-4, string(frame[4:]))

	if err := readReply(conn); err != nil {
		return err
	}
	if notification != nil {
		tool.DefaultLogger.Debugf("[UnixSocket] Notification sent: %s - %s", notification.Type, notification.Title)
	}
	return nil
}

// encodeFrame returns the length-prefixed payload. A nil notification is sent as {}.
func encodeFrame(notification *types.Notification) ([]byte, error) {
	payload := []byte("{}")
	if notification != nil {
		var err error
		payload, err = sonic.Marshal(notification)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize notification data: %v", err)
		}
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("notification payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	frame := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	return append(frame, payload...), nil
}

// readReply reads what the listener answers before closing. An empty or non-JSON reply is fine.
func readReply(conn net.Conn) error {
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read response from Unix socket: %v", err)
	}
	if n == 0 {
		return nil
	}
	var response map[string]any
	if err := sonic.Unmarshal(buf[:n], &response); err != nil {
		tool.DefaultLogger.Debugf("Unix socket response (raw): %s", string(buf[:n]))
		return nil
	}
	if errMsg, ok := response["error"].(string); ok && errMsg != "" {
		return fmt.Errorf("server returned error: %s", errMsg)
	}
	return nil
}
