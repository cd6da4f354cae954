package il2prx

/*------------------------------------------------------------------
 *
 * Purpose:	One decoding session: bits in, packets out to the sinks.
 *
 * Description:	A session owns the framer, the decoder and the packet
 *		counter.  It is not safe for concurrent use; chunks
 *		from several producers must be funneled through one
 *		goroutine before they get here.
 *
 *		Sinks are fire and forget.  A failing sink is logged
 *		and processing carries on with the next packet.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

// PacketStore persists packets, keyed by run id and packet index.
type PacketStore interface {
	StorePacket(ctx context.Context, p *Packet) error
}

// PacketPublisher hands packets to something downstream.
type PacketPublisher interface {
	PublishPacket(ctx context.Context, p *Packet) error
}

type SessionConfig struct {
	RunID        int64
	Seed         uint16
	StorePackets bool

	// Used by ProcessBits only.
	AccessThreshold int

	Store     PacketStore     // Written only when StorePackets is set.
	Payload   io.Writer       // Receives payload bytes of CRC good packets.
	Publisher PacketPublisher // Every assembled packet.

	Logger  *log.Logger
	Metrics *Metrics
}

type SessionStats struct {
	Frames       int            // Raw frames out of the framer.
	Packets      int            // Assembled packets.
	CRCGood      int            // Of those, how many passed the CRC.
	Discards     map[string]int // By reason.
	PayloadBytes int64          // Written to the payload sink.
	SinkErrors   int
	Framer       FramerStats
}

type Session struct {
	cfg        SessionConfig
	logger     *log.Logger
	framer     *Framer
	decoder    *Decoder
	correlator *Correlator

	nextIndex int
	stats     SessionStats
}

func NewSession(cfg SessionConfig) *Session {
	var logger = cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Session{
		cfg:        cfg,
		logger:     logger.With("run", cfg.RunID),
		framer:     NewFramer(),
		decoder:    NewDecoder(cfg.Seed),
		correlator: NewCorrelator(cfg.AccessThreshold),
		stats:      SessionStats{Discards: make(map[string]int)},
	}
}

func (s *Session) Stats() SessionStats {
	var st = s.stats
	st.Discards = make(map[string]int, len(s.stats.Discards))
	for k, v := range s.stats.Discards {
		st.Discards[k] = v
	}
	st.Framer = s.framer.Stats()
	return st
}

// ProcessBits runs a chunk of unsynchronized hard bits through the access
// code correlator and then Process.
func (s *Session) ProcessBits(ctx context.Context, bits []byte) []*Packet {
	var markers = s.correlator.Scan(bits)
	s.cfg.Metrics.addMarkers(len(markers))
	return s.Process(ctx, bits, markers)
}

/*------------------------------------------------------------------
 *
 * Name:	Process
 *
 * Purpose:	Handle one chunk from the demodulator.
 *
 * Inputs:	bits	- One bit per byte.
 *
 *		markers	- Absolute offsets of the first bit after each
 *			  access code found by the correlator.
 *
 * Returns:	Packets assembled from frames completed by this chunk.
 *
 *------------------------------------------------------------------*/

func (s *Session) Process(ctx context.Context, bits []byte, markers []int64) []*Packet {
	s.cfg.Metrics.addBits(len(bits))

	var before = s.framer.Stats()
	var frames = s.framer.Push(bits, markers)
	var after = s.framer.Stats()
	s.cfg.Metrics.addFramerDrops(after.StaleMarkers-before.StaleMarkers, after.ZeroLenFrames-before.ZeroLenFrames)

	var packets []*Packet
	for _, frame := range frames {
		var p = s.HandleFrame(ctx, frame)
		if p != nil {
			packets = append(packets, p)
		}
	}
	return packets
}

// HandleFrame decodes one raw frame and sends the result to the sinks.
func (s *Session) HandleFrame(ctx context.Context, frame []byte) *Packet {
	s.stats.Frames++
	s.cfg.Metrics.frame()

	var p, err = s.decoder.Decode(frame)
	if err != nil {
		var reason = err.Error()
		if de, ok := IsDiscard(err); ok {
			reason = de.Reason()
		}
		s.stats.Discards[reason]++
		s.cfg.Metrics.discard(reason)
		if s.logger.GetLevel() <= log.DebugLevel {
			s.logger.Debug("frame discarded", "len", len(frame), "reason", reason, "frame", "\n"+hexDump(frame))
		}
		return nil
	}

	p.RunID = s.cfg.RunID
	p.PacketIndex = s.nextIndex
	s.nextIndex++

	s.stats.Packets++
	if p.CRCOK {
		s.stats.CRCGood++
	}
	s.cfg.Metrics.packet(p)

	s.logger.Info("packet",
		"index", p.PacketIndex,
		"addrs", p.Fields.Addrs(),
		"bytes", p.PayloadByteCount,
		"hdr_fixed", p.HeaderCorrections,
		"payload_fixed", p.PayloadCorrections,
		"crc_ok", p.CRCOK)

	s.emit(ctx, p)

	return p
}

func (s *Session) emit(ctx context.Context, p *Packet) {
	if s.cfg.StorePackets && s.cfg.Store != nil {
		if err := s.cfg.Store.StorePacket(ctx, p); err != nil {
			s.sinkError("store", p, err)
		}
	}

	if s.cfg.Payload != nil && p.CRCOK {
		var n, err = s.cfg.Payload.Write(p.Payload)
		s.stats.PayloadBytes += int64(n)
		s.cfg.Metrics.payloadWritten(n)
		if err != nil {
			s.sinkError("payload", p, err)
		}
	}

	if s.cfg.Publisher != nil {
		if err := s.cfg.Publisher.PublishPacket(ctx, p); err != nil {
			s.sinkError("publish", p, err)
		}
	}
}

func (s *Session) sinkError(sink string, p *Packet, err error) {
	s.stats.SinkErrors++
	s.cfg.Metrics.sinkError(sink)
	s.logger.Error("sink failed", "sink", sink, "index", p.PacketIndex, "err", err)
}
