package relay

import (
	"bufio"
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

const listenerDepth = 64

// Listener hands the packets of the sinks it taps over to one consumer,
// typically a viewer's audio stream. Packets are dropped while the consumer lags.
type Listener struct {
	packets chan *rtp.Packet
	done    chan struct{}
	once    sync.Once
}

func NewListener() *Listener {
	return &Listener{
		packets: make(chan *rtp.Packet, listenerDepth),
		done:    make(chan struct{}),
	}
}

func (l *Listener) WriteRTP(p *rtp.Packet) error {
	select {
	case <-l.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case l.packets <- p:
	default:
	}
	return nil
}

func (l *Listener) Packets() <-chan *rtp.Packet {
	return l.packets
}

func (l *Listener) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// ServeOgg streams the packets to w as ogg/opus, flushing every page,
// until the listener is closed or w fails.
func (l *Listener) ServeOgg(w *bufio.Writer) error {
	ogg, err := oggwriter.NewWith(w, opusRate, opusChannels)
	if err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	for {
		select {
		case <-l.done:
			return nil
		case p := <-l.packets:
			if err = ogg.WriteRTP(p); err != nil {
				return err
			}
			if err = w.Flush(); err != nil {
				return err
			}
		}
	}
}
