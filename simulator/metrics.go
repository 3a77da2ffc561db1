package simulator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luma/xcpflash/protocol"
	"github.com/luma/xcpflash/storage"
)

// metrics is kept per device, so several simulators can run in one process.
type metrics struct {
	registry *prometheus.Registry
	commands *prometheus.CounterVec
	resets   prometheus.Counter
}

func newMetrics(flash *storage.InmemoryStore) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xcpsim",
			Name:      "commands_total",
			Help:      "Commands received, by command and response kind.",
		}, []string{"command", "response"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xcpsim",
			Name:      "resets_total",
			Help:      "PROGRAM_RESET commands received.",
		}),
	}

	flashBytes := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "xcpsim",
		Name:      "flash_programmed_bytes",
		Help:      "Bytes of flash holding programmed data.",
	}, func() float64 {
		return float64(flash.Size())
	})

	m.registry.MustRegister(m.commands, m.resets, flashBytes)

	return m
}

func (m *metrics) observe(cmd protocol.Command, resps []protocol.Packet) {
	kind := "none"

	for _, resp := range resps {
		if len(resp) == 0 {
			continue
		}

		kind = "positive"
		if resp[0] == protocol.PIDError {
			kind = "negative"
		}
	}

	m.commands.WithLabelValues(cmd.String(), kind).Inc()

	if cmd == protocol.CmdProgramReset {
		m.resets.Inc()
	}
}
