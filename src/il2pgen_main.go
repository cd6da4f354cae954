package il2prx

/*------------------------------------------------------------------
 *
 * Purpose:	Generate a bit file of IL2P frames for testing the
 *		receiver.
 *
 * Description:	Each frame is preceded by idle bits and the access
 *		code, in the same format the receiver reads.  Symbol
 *		errors can be sprinkled over the header and payload
 *		blocks to exercise the FEC.
 *
 *		Payloads come from -m, from a file split into blocks,
 *		or a built in numbered test message.
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/pflag"
)

func Il2pgenMain() {
	var outputFile = pflag.StringP("output-file", "o", "", "Write bits to this file.  .zst compresses.")
	var count = pflag.IntP("packet-count", "n", 10, "Number of frames when no input file is given.")
	var message = pflag.StringP("message", "m", "", "Payload text.  Frame number is appended.")
	var inputFile = pflag.StringP("input-file", "f", "", "Send the contents of this file.")
	var blockSize = pflag.IntP("block-size", "b", 200, "Payload bytes per frame with -f.")
	var payloadErrors = pflag.IntP("payload-errors", "e", 0, "Symbol errors to inject in each payload block.")
	var headerErrors = pflag.IntP("header-errors", "E", 0, "Symbol errors to inject in each header block.")
	var gapBits = pflag.IntP("gap", "g", 64, "Idle bits before each frame.")
	var randomGap = pflag.Bool("random-gap", false, "Idle bits are random rather than zero.")
	var seedStr = pflag.StringP("seed", "s", "0x1f0", "Scrambler seed.")
	var randSeed = pflag.Uint64("rand-seed", 1, "Seed for error positions and random idle bits.")
	var packed = pflag.BoolP("packed", "p", false, "Write 8 bits per byte, MSB first.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Generate a bit file of IL2P frames.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o bitfile\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  %s -n 100 -e 8 -o test.bits\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "    100 frames, each with the most payload errors the FEC can fix.\n")
	}

	pflag.Parse()

	if *version {
		printVersion(os.Stdout, "il2pgen", false)
		return
	}

	if *help || *outputFile == "" {
		pflag.Usage()
		os.Exit(1)
	}

	var seed, err = strconv.ParseUint(*seedStr, 0, 16)
	if err != nil || seed > lfsrMask {
		fmt.Fprintf(os.Stderr, "Invalid seed %q\n", *seedStr)
		os.Exit(1)
	}

	if *blockSize < 1 || *blockSize > MaxFramePayload {
		fmt.Fprintf(os.Stderr, "Block size must be 1 to %d.\n", MaxFramePayload)
		os.Exit(1)
	}
	if *headerErrors < 0 || *headerErrors > HeaderSize+HeaderParitySize {
		fmt.Fprintf(os.Stderr, "Header errors must be 0 to %d.\n", HeaderSize+HeaderParitySize)
		os.Exit(1)
	}

	var payloads [][]byte
	if *inputFile != "" {
		var data, rerr = os.ReadFile(*inputFile)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "%s\n", rerr)
			os.Exit(1)
		}
		payloads = splitBlocks(data, *blockSize)
	} else {
		var text = *message
		if text == "" {
			text = "IL2P test packet"
		}
		for i := range *count {
			payloads = append(payloads, []byte(text+" "+strconv.Itoa(i+1)))
		}
	}

	var gen = &bitGenerator{
		encoder:       NewEncoder(uint16(seed)),
		rng:           rand.New(rand.NewPCG(*randSeed, *randSeed^0x9e3779b97f4a7c15)),
		gapBits:       *gapBits,
		randomGap:     *randomGap,
		headerErrors:  *headerErrors,
		payloadErrors: *payloadErrors,
	}

	if err := writeBitFile(*outputFile, func(w io.Writer) error {
		return gen.writeFrames(w, payloads, *packed)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d frames written to %s\n", len(payloads), *outputFile)
}

func splitBlocks(data []byte, size int) [][]byte {
	var blocks [][]byte
	for len(data) > 0 {
		var n = min(size, len(data))
		blocks = append(blocks, data[:n])
		data = data[n:]
	}
	return blocks
}

type bitGenerator struct {
	encoder       *Encoder
	rng           *rand.Rand
	gapBits       int
	randomGap     bool
	headerErrors  int
	payloadErrors int
}

// corrupt XORs n distinct bytes of block with non-zero values.
func (g *bitGenerator) corrupt(block []byte, n int) {
	n = min(n, len(block))
	for _, i := range g.rng.Perm(len(block))[:n] {
		block[i] ^= byte(1 + g.rng.IntN(255))
	}
}

func (g *bitGenerator) writeFrames(w io.Writer, payloads [][]byte, packed bool) error {
	var bits []byte

	for _, payload := range payloads {
		var frame, err = g.encoder.EncodeFrame(payload)
		if err != nil {
			return err
		}

		var hdrBlock = frame[frameHeaderOffset : frameHeaderOffset+HeaderSize+HeaderParitySize]
		g.corrupt(hdrBlock, g.headerErrors)
		var payloadStart = frameHeaderOffset + HeaderSize + HeaderParitySize
		g.corrupt(frame[payloadStart:payloadStart+len(payload)+PayloadParitySize], g.payloadErrors)

		bits = bits[:0]
		for range g.gapBits {
			var b byte
			if g.randomGap {
				b = byte(g.rng.IntN(2))
			}
			bits = append(bits, b)
		}
		bits = append(bits, FrameBits(frame)...)

		if packed {
			// Gap lengths that are not a multiple of 8 get padded with zeros.
			for len(bits)%8 != 0 {
				bits = append([]byte{0}, bits...)
			}
			if _, err := w.Write(PackBits(bits)); err != nil {
				return err
			}
		} else if _, err := w.Write(bits); err != nil {
			return err
		}
	}

	// Trailing idle so the last frame is not right at the end of file.
	var tail = make([]byte, max(g.gapBits, 8))
	if packed {
		tail = make([]byte, (len(tail)+7)/8)
	}
	_, err := w.Write(tail)
	return err
}

// writeBitFile creates path and hands fill a writer for it, compressing
// when the name ends in .zst.
func writeBitFile(path string, fill func(io.Writer) error) error {
	var f, err = os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var bw = bufio.NewWriter(f)

	if strings.HasSuffix(path, ".zst") {
		var enc, zerr = zstd.NewWriter(bw)
		if zerr != nil {
			return zerr
		}
		if err := fill(enc); err != nil {
			enc.Close()
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else if err := fill(bw); err != nil {
		return err
	}

	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
