// Command event-tail follows appointment lifecycle events on Kafka and prints
// one JSON line per event.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/homelube/libs/config"
	"github.com/md-rashed-zaman/homelube/libs/kafkax"
	"github.com/md-rashed-zaman/homelube/libs/runtime"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopics = "appointment.booked.v1,appointment.acknowledged.v1,appointment.calendar_responded.v1,appointment.sms_declined.v1"

type line struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Key       string          `json:"aggregateId"`
	Time      time.Time       `json:"time"`
	TraceID   string          `json:"traceId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func main() {
	var (
		brokers = flag.String("brokers", config.String("KAFKA_BROKERS", "localhost:9092"), "comma separated kafka brokers")
		group   = flag.String("group", config.String("KAFKA_GROUP_ID", "homelube-event-tail"), "consumer group id")
		topics  = flag.String("topics", defaultTopics, "comma separated topics")
	)
	flag.Parse()

	list := kafkax.SplitBrokers(*brokers)
	if len(list) == 0 {
		fatal("at least one broker is required")
	}
	logger := runtime.NewLoggerTo(os.Stderr, "event-tail", config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.ShutdownContext(context.Background(), logger)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     list,
		GroupID:     *group,
		GroupTopics: kafkax.SplitBrokers(*topics),
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("kafka read error", "err", err)
			time.Sleep(time.Second)
			continue
		}
		if err := writeLine(ctx, os.Stdout, msg); err != nil {
			logger.Error("write event failed", "err", err, "topic", msg.Topic)
		}
	}
}

func writeLine(ctx context.Context, w io.Writer, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	out := line{
		EventID:   meta.EventID,
		EventType: meta.EventType,
		Key:       string(msg.Key),
		Time:      msg.Time.UTC(),
		Payload:   json.RawMessage(msg.Value),
	}
	if !json.Valid(msg.Value) {
		raw, _ := json.Marshal(strings.TrimSpace(string(msg.Value)))
		out.Payload = raw
	}
	if sc := trace.SpanContextFromContext(kafkax.ExtractTraceContext(ctx, msg)); sc.HasTraceID() {
		out.TraceID = sc.TraceID().String()
	}
	return json.NewEncoder(w).Encode(out)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
