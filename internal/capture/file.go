package capture

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/netscope/internal/core"
)

type fileSource struct {
	*base
	reader *pcapgo.Reader
}

// OpenFile replays a pcap file. Run returns nil at end of file.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}

	r, err := pcapgo.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read pcap header %s: %w", path, err)
	}

	s := &fileSource{reader: r}
	s.base = newBase(TypeFile, path, core.LinkType(r.LinkType()), f.Close)
	return s, nil
}

func (s *fileSource) Run(ctx context.Context, handler Handler) error {
	return s.run(ctx, s.reader.ReadPacketData, handler)
}

func (s *fileSource) Stats() (Stats, error) {
	return Stats{Received: s.received.Load()}, nil
}
