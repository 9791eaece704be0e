package main

// ============================================================================
// Interval + PubSub demo: a sender layer publishes a typed packet once per
// second, a receiver layer consumes it, and after five packets the sender
// schedules a shutdown through the event loop.
// ============================================================================

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/darthgelum/Walrus/internal/app"
	"github.com/darthgelum/Walrus/internal/eventloop"
	"github.com/darthgelum/Walrus/internal/pubsub"
	"github.com/darthgelum/Walrus/pkg/layer"
)

// DataPacket is the payload exchanged between the two demo layers.
type DataPacket struct {
	ID        int
	Message   string
	Timestamp float64
}

// Sender publishes one DataPacket per second and shuts the application down
// after five packets.
type Sender struct {
	layer.Base

	app        *app.Application
	intervalID eventloop.EventID
	counter    atomic.Int64
}

func (s *Sender) OnAttach() {
	fmt.Println("=== Sender Attached ===")
	fmt.Println("Starting interval to send data every 1000ms...")

	s.intervalID = s.app.SetInterval(func() {
		n := int(s.counter.Add(1))

		packet := DataPacket{
			ID:        n,
			Message:   fmt.Sprintf("Message from Sender #%d", n),
			Timestamp: s.app.Time(),
		}
		fmt.Printf("[Sender] Sending packet %d: %q at time %.2f\n",
			packet.ID, packet.Message, packet.Timestamp)

		pubsub.Publish(s.app.Broker(), "data_channel", packet)

		if n >= 5 {
			fmt.Println("[Sender] Stopping interval after 5 messages")
			s.app.ClearInterval(s.intervalID)

			s.app.SetTimeout(func() {
				fmt.Println("=== Demo Complete - Shutting Down ===")
				s.app.Close()
			}, 2*time.Second)
		}
	}, time.Second)
}

func (s *Sender) OnDetach() {
	fmt.Println("[Sender] Detached")
}

// Receiver subscribes to the data channel and prints every packet.
type Receiver struct {
	layer.Base

	app *app.Application
}

func (r *Receiver) OnAttach() {
	fmt.Println("[Receiver] Attached and subscribing to data_channel")

	pubsub.Subscribe(r.app.Broker(), "data_channel", func(msg pubsub.Message[DataPacket]) {
		fmt.Printf("[Receiver] Received packet %d: %q (sent at %.2f)\n",
			msg.Payload.ID, msg.Payload.Message, msg.Payload.Timestamp)
	})
}

func (r *Receiver) OnDetach() {
	fmt.Println("[Receiver] Detached")
}

func main() {
	spec := app.DefaultSpecification()
	spec.Name = "Simple SetInterval PubSub Demo"
	spec.EnablePubSub = true

	a := app.New(spec, nil)

	// Receiver first so it is subscribed before the first publish.
	a.PushLayer(&Receiver{app: a}, "receiver")
	a.PushLayer(&Sender{app: a}, "sender")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		slog.Error("demo failed", "error", err)
		os.Exit(1)
	}
}
