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

	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/storage"
	nats "github.com/nats-io/nats.go"
)

const (
	defaultServerURL = nats.DefaultURL
	defaultStream    = "DOGS"
)

func main() {
	var (
		serverURL  = flag.String("server", defaultServerURL, "NATS server URL")
		stream     = flag.String("stream", defaultStream, "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats, dump")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		dogs       = flag.String("dogs", "", "Dog IDs filter (comma-separated)")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or RFC3339 time")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		stateFile  = flag.String("state", "", "State file for the dump command")
		asJSON     = flag.Bool("json", false, "Print the whole snapshot as JSON (dump)")
	)
	flag.Parse()

	switch *command {
	case "tail":
		startTime, err := parseSinceTime(*since, time.Now())
		if err != nil {
			log.Fatalf("❌ Invalid since time: %v", err)
		}
		opts := &TailOptions{
			Filter: EventFilter{
				Types: parseStringList(*eventTypes),
				Dogs:  parseIDList(*dogs),
			},
			Since:  startTime,
			Limit:  *limit,
			Follow: *follow,
		}
		if err := tailEvents(*serverURL, opts); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "stats":
		if err := showStats(*serverURL, *stream); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}

	case "dump":
		if *stateFile == "" {
			log.Fatalf("❌ -state is required for dump")
		}
		if err := dumpState(os.Stdout, *stateFile, *asJSON); err != nil {
			log.Fatalf("❌ Dump failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, dump")
		os.Exit(1)
	}
}

type TailOptions struct {
	Filter EventFilter
	Since  time.Time
	Limit  int
	Follow bool
}

// tailEvents выводит события из стрима начиная с opts.Since
func tailEvents(url string, opts *TailOptions) error {
	fmt.Printf("🎬 Tailing events since %s (limit: %d, follow: %v)\n",
		opts.Since.Format(time.RFC3339), opts.Limit, opts.Follow)

	nc, err := nats.Connect(url, nats.Name("event-cli"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}

	msgs := make(chan *nats.Msg, 256)
	sub, err := js.ChanSubscribe(eventbus.SubjectPrefix+".*", msgs,
		nats.OrderedConsumer(), nats.StartTime(opts.Since))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// без follow выходим, когда стрим замолчал
	idle := time.NewTimer(2 * time.Second)
	defer idle.Stop()

	eventCount := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", eventCount)
			return nil
		case <-idle.C:
			if !opts.Follow {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
		case msg := <-msgs:
			idle.Reset(2 * time.Second)
			ev, err := decodeEnvelope(msg.Data)
			if err != nil {
				fmt.Printf("⚠️  Skipping malformed event on %s: %v\n", msg.Subject, err)
				continue
			}
			if !opts.Filter.Match(ev) {
				continue
			}
			fmt.Println(formatEvent(ev))
			eventCount++

			// Если не follow режим и достигли лимита, выходим
			if !opts.Follow && eventCount >= opts.Limit {
				fmt.Printf("\n📊 Total events: %d\n", eventCount)
				return nil
			}
		}
	}
}

// showStats выводит состояние стрима
func showStats(url, stream string) error {
	fmt.Println("📊 Stream statistics")

	nc, err := nats.Connect(url, nats.Name("event-cli"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}

	info, err := js.StreamInfo(stream)
	if err != nil {
		return fmt.Errorf("stream %s: %w", stream, err)
	}

	fmt.Printf("Stream:       %s\n", info.Config.Name)
	fmt.Printf("Subjects:     %v\n", info.Config.Subjects)
	fmt.Printf("Messages:     %d\n", info.State.Msgs)
	fmt.Printf("Bytes:        %d\n", info.State.Bytes)
	fmt.Printf("Retention:    %v\n", info.Config.MaxAge)
	if info.State.Msgs > 0 {
		fmt.Printf("First event:  %s\n", info.State.FirstTime.Format(time.RFC3339))
		fmt.Printf("Last event:   %s\n", info.State.LastTime.Format(time.RFC3339))
	}
	fmt.Printf("Consumers:    %d\n", info.State.Consumers)
	return nil
}

// dumpLoad читает и декодирует файл состояния
func dumpLoad(path string) (*storage.Snapshot, error) {
	data, err := storage.NewFileStore(path).Load(context.Background())
	if err != nil {
		return nil, err
	}
	return storage.DecodeSnapshot(data)
}
