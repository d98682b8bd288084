// Command devclient is a small diagnostic tool, not the desktop client
// spec.md places out of scope: it dials a running hushcore server, streams a
// recorded WAV file as though it were microphone input, and prints whatever
// transcripts and volume_action messages come back. Useful for exercising
// the server without the real desktop client.
//
// Grounded on the teacher's cmd/agent/main.go for the .env-then-flag
// startup shape and SIGINT/SIGTERM handling, with the malgo microphone
// capture and orchestrator wiring replaced by a WAV file reader and a
// direct websocket connection to the server's own wire protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/joho/godotenv"

	"github.com/hushcore/hushcore/pkg/audio"
	"github.com/hushcore/hushcore/pkg/wsproto"
)

const frameDuration = 50 * time.Millisecond

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("note: no .env file found, using process environment")
	}

	addr := flag.String("addr", "ws://localhost:8081/ws", "websocket address of the hushcore server")
	wavPath := flag.String("wav", "", "path to a 16-bit mono PCM WAV file to stream")
	flag.Parse()

	if *wavPath == "" {
		log.Fatal("usage: devclient -wav recording.wav [-addr ws://host:port/ws]")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, *wavPath); err != nil {
		log.Fatalf("devclient: %v", err)
	}
}

func run(ctx context.Context, addr, wavPath string) error {
	f, err := os.Open(wavPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", wavPath, err)
	}
	defer f.Close()

	wav, err := audio.DecodeWav(f)
	if err != nil {
		return fmt.Errorf("decoding wav: %w", err)
	}
	if wav.SampleRate != 16000 || wav.Channels != 1 || wav.BitDepth != 16 {
		log.Printf("warning: wav is %dHz/%d-channel/%d-bit, server expects 16kHz mono 16-bit", wav.SampleRate, wav.Channels, wav.BitDepth)
	}

	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	go readLoop(ctx, conn)

	bytesPerFrame := int(float64(wav.SampleRate) * frameDuration.Seconds() * 2)
	if bytesPerFrame <= 0 {
		bytesPerFrame = 1600
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	pcm := wav.PCM
	for len(pcm) > 0 {
		n := bytesPerFrame
		if n > len(pcm) {
			n = len(pcm)
		}
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[:n]); err != nil {
			return fmt.Errorf("writing audio frame: %w", err)
		}
		pcm = pcm[n:]

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}

	fmt.Println("finished streaming, press Ctrl+C to exit")
	<-ctx.Done()
	return nil
}

// readLoop prints every transcript and volume_action message the server
// sends back, until the connection closes or ctx is canceled.
func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env wsproto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		switch env.Type {
		case wsproto.TypeAck:
			fmt.Println("[ack] connected")
		case wsproto.TypeTranscript:
			fmt.Printf("[transcript] %s\n", string(env.Payload))
		case wsproto.TypeVolumeAction:
			fmt.Printf("[volume] %s\n", string(env.Payload))
		case wsproto.TypeHeartbeat:
			hb := wsproto.NewHeartbeat()
			_ = wsjson.Write(ctx, conn, hb)
		}
	}
}
