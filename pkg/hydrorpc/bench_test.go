package hydrorpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type stubBench struct {
	requestIDs chan string
}

func (s *stubBench) SendData(ctx context.Context, in *Empty) (*Reading, error) {
	s.requestIDs <- RequestID(ctx)
	temperature, humidity, conductivity := 25.5, 60.25, 310.0
	return &Reading{
		SourceID:     "bench-a",
		Temperature:  &temperature,
		Humidity:     &humidity,
		Conductivity: &conductivity,
		CapturedAt:   "2025-01-02T03:04:05Z",
	}, nil
}

func startServer(t *testing.T, register func(*grpc.Server)) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryServerInterceptor(nil)))
	register(srv)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestBenchClientRoundTrip(t *testing.T) {
	stub := &stubBench{requestIDs: make(chan string, 1)}
	addr := startServer(t, func(s *grpc.Server) { RegisterBenchServer(s, stub) })

	conn, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reading, err := NewBenchClient(conn).SendData(ctx, nil)
	if err != nil {
		t.Fatalf("send data: %v", err)
	}
	got, err := reading.Domain()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.SourceID != "bench-a" || got.Temperature != 25.5 || got.Humidity != 60.25 || got.Conductivity != 310 {
		t.Fatalf("unexpected reading %+v", got)
	}
	if id := <-stub.requestIDs; id == "" {
		t.Fatal("expected request id to be propagated")
	}
}

func TestBenchClientKeepsCallerRequestID(t *testing.T) {
	stub := &stubBench{requestIDs: make(chan string, 1)}
	addr := startServer(t, func(s *grpc.Server) { RegisterBenchServer(s, stub) })

	conn, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, RequestIDKey, "run-42")
	if _, err := NewBenchClient(conn).SendData(ctx, &Empty{}); err != nil {
		t.Fatalf("send data: %v", err)
	}
	if id := <-stub.requestIDs; id != "run-42" {
		t.Fatalf("expected run-42, got %q", id)
	}
}

type echoCalculation struct{}

func (echoCalculation) ComputeMetrics(ctx context.Context, in *ReadingBatch) (*SummaryBatch, error) {
	out := &SummaryBatch{Summaries: []*MetricSummary{}}
	for _, r := range in.Readings {
		out.Summaries = append(out.Summaries, &MetricSummary{SourceID: r.SourceID, MeanTemperature: *r.Temperature})
	}
	return out, nil
}

func TestCalculationClientRoundTrip(t *testing.T) {
	addr := startServer(t, func(s *grpc.Server) { RegisterCalculationServer(s, echoCalculation{}) })

	conn, err := Dial(addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	temperature, humidity, conductivity := 20.0, 50.0, 100.0
	batch := &ReadingBatch{Readings: []*Reading{{SourceID: "A", Temperature: &temperature, Humidity: &humidity, Conductivity: &conductivity}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := NewCalculationClient(conn).ComputeMetrics(ctx, batch)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(resp.Summaries) != 1 || resp.Summaries[0].SourceID != "A" || resp.Summaries[0].MeanTemperature != 20 {
		t.Fatalf("unexpected response %+v", resp.Summaries)
	}
}
