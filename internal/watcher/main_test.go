package watcher

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/audit"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	os.Exit(m.Run())
}

// recordingNotifier captures alerts for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Send(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) Sendf(format string, args ...any) {
	n.Send(fmt.Sprintf(format, args...))
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

// rig bundles the in-memory store with a registrar wired to it.
type rig struct {
	mem      *store.Memory
	reg      *Registrar
	notifier *recordingNotifier
}

func newRig() *rig {
	mem := store.NewMemory()
	n := &recordingNotifier{}
	ticks := models.TickTable{"XBT-USD": {Tick: 0.5, Length: 1}}
	return &rig{
		mem:      mem,
		reg:      NewRegistrar(mem, ticks, n, audit.Nop{}),
		notifier: n,
	}
}

func baseOrder(id string, mut func(*models.Order)) *models.Order {
	o := &models.Order{
		ID:            id,
		Active:        1,
		Status:        models.StatusWaiting,
		Side:          models.SideBuy,
		TradeType:     models.TradeLimit,
		IndicatorType: models.IndicatorOpen,
		Symbol:        "XBT-USD",
		PlanType:      models.PlanReserved,
		Indicators:    []models.Indicator{{"triggerPrice": 99.5}},
	}
	if mut != nil {
		mut(o)
	}
	return o
}
