// Command schedulerd runs a small fleet of schedulers over a single TCP
// listener, demonstrating acceptor handoff and session admission end to
// end. Its sessions are never given commands to dispatch, and its memory
// manager never requests a full GC.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/joeycumines/izerolog"

	"github.com/haiyanghan/lealone-go/scheduler"
)

func main() {
	var (
		listenAddr = pflag.StringP("listen", "l", "127.0.0.1:9999", "address to accept SQL connections on")
		metricsAddr = pflag.StringP("metrics", "m", "127.0.0.1:9998", "address to serve Prometheus metrics on")
		fleetSize  = pflag.IntP("schedulers", "n", 4, "number of scheduler threads in the fleet")
		idleTimeout = pflag.Duration("idle-timeout", 5*time.Minute, "session idle eviction timeout")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	zl := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	if *verbose {
		zl = zl.Level(zerolog.DebugLevel)
	} else {
		zl = zl.Level(zerolog.InfoLevel)
	}
	log := izerolog.L.New(izerolog.WithZerolog(zl))

	reg := prometheus.NewRegistry()

	engine := &demoTransactionEngine{}
	memory := &demoMemoryManager{}
	acceptors := newDemoAcceptorManager()

	var nextSessionID uint64

	fleet := make([]*scheduler.Scheduler, *fleetSize)
	for i := range fleet {
		cfg := scheduler.Config{
			ID:                 uint64(i),
			SchedulerCount:     *fleetSize,
			SchedulerIndex:     i,
			SessionIdleTimeout: *idleTimeout,
			ValidatorRates:     map[time.Duration]int{time.Second: 50, time.Minute: 1000},
			TransactionEngine:  engine,
			MemoryManager:      memory,
			AcceptorManager:    acceptors,
			Registry:           reg,
			SessionInitFactory: func(fd int) *scheduler.SessionInitTask {
				return &scheduler.SessionInitTask{
					FD: fd,
					Attempt: func() (scheduler.SessionInitResult, *scheduler.Session, error) {
						conn, ok := acceptors.Conn(fd)
						if !ok {
							return scheduler.SessionInitFailed, nil, fmt.Errorf("no connection for fd %d", fd)
						}
						// A real server would negotiate TLS and exchange
						// credentials here, possibly returning
						// SessionInitRetry across several Attempt calls.
						// This demo skips straight to a bare session.
						nextSessionID++
						sess := scheduler.NewSession(nextSessionID, fd)
						sess.OnSendError(func(packetID uint64, err error) {
							_ = conn.Close()
						})
						return scheduler.SessionInitComplete, sess, nil
					},
				}
			},
		}
		s, err := scheduler.New(cfg)
		if err != nil {
			log.Err().Str("error", err.Error()).Log("failed to build scheduler")
			os.Exit(1)
		}
		fleet[i] = s
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Err().Str("error", err.Error()).Log("failed to listen")
		os.Exit(1)
	}
	listenerID := acceptors.Register(ln)
	for _, s := range fleet {
		s.RegisterAccepter(listenerID)
	}

	log.Info().Int("fleet", len(fleet)).Log("starting scheduler fleet")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Warning().Str("error", err.Error()).Log("metrics server stopped")
		}
	}()

	for _, s := range fleet {
		go runSchedulerLoop(s)
	}

	select {}
}

func runSchedulerLoop(s *scheduler.Scheduler) {
	for {
		if err := s.Iterate(50 * time.Millisecond); err != nil {
			fmt.Fprintf(os.Stderr, "scheduler %d stopped: %v\n", s.ID(), err)
			return
		}
	}
}
