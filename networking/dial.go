package networking

import (
	"net"
	"time"

	"ftcp/constants"
	"ftcp/protocol"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"
)

// Connect opens a TCP connection to the target address, retrying with
// exponential backoff doubling from 1000 ms up to the 16000 ms cap.
// The data socket gets TCP_NODELAY and the requested DSCP marking.
func Connect(address string, dscp int, log zerolog.Logger) (*Stream, error) {
	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return nil, protocol.WrapErr(protocol.ErrConnect, err)
	}

	dial := &net.Dialer{Timeout: constants.TIMEOUT_SECONDS * time.Second}

	delay := constants.BACKOFF_START_MS * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= constants.CONNECT_ATTEMPTS; attempt++ {
		log.Info().Str("address", address).
			Int("attempt", attempt).Int("max", constants.CONNECT_ATTEMPTS).
			Msg("connecting")

		conn, err := dial.Dial("tcp", address)
		if err == nil {
			// Always immediately send; the protocol is strictly
			// lock-step and every message is latency bound.
			conn.(*net.TCPConn).SetNoDelay(true)
			// Set DSCP. On Windows the stack ignores the value by default.
			ipv4.NewConn(conn).SetTOS(dscp)
			return NewStream(conn), nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("connection attempt failed")

		if attempt < constants.CONNECT_ATTEMPTS {
			log.Info().Dur("delay", delay).Msg("retrying")
			time.Sleep(delay)
			delay *= 2
			if delay > constants.BACKOFF_MAX_MS*time.Millisecond {
				delay = constants.BACKOFF_MAX_MS * time.Millisecond
			}
		}
	}
	return nil, protocol.WrapErr(protocol.ErrConnect, lastErr)
}
