package dummyclient

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

type remote struct {
	packets chan *rtp.Packet
}

func (r *remote) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	p, ok := <-r.packets
	if !ok {
		return nil, nil, io.EOF
	}
	return p, nil, nil
}
func (r *remote) ID() string                { return "TR_voice" }
func (r *remote) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeAudio }

func TestObserverRecordsAudio(t *testing.T) {
	dir := t.TempDir()
	o := &observer{dir: dir}
	r := &remote{packets: make(chan *rtp.Packet)}
	o.onTrack(r, "commentator")

	for i := 0; i < 3; i++ {
		r.packets <- &rtp.Packet{
			Header:  rtp.Header{Version: 2, SequenceNumber: uint16(i), Timestamp: uint32(i * 960)},
			Payload: []byte{0xfc, 0xff, 0xfe},
		}
	}
	close(r.packets)

	o.mu.Lock()
	s := o.sinks[0]
	o.mu.Unlock()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("sink did not finish")
	}
	o.close()

	fi, err := os.Stat(filepath.Join(dir, "commentator-TR_voice.ogg"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("empty recording")
	}
}
