package logger

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dwarvesf/escrow-backend/internal/types/environments"
)

type fatalHook struct {
	called bool
}

func (h *fatalHook) OnWrite(_ *zapcore.CheckedEntry, _ []zapcore.Field) {
	h.called = true
}

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{wrappedLogger: zap.New(core)}, logs
}

var _ = Describe("Logger", func() {
	Describe("#New", func() {
		DescribeTable("builds a logger for every environment",
			func(env environments.Environment, debugEnabled bool) {
				l := New(env)
				Expect(l.wrappedLogger).NotTo(BeNil())
				Expect(l.wrappedLogger.Core().Enabled(zapcore.InfoLevel)).To(BeTrue())
				Expect(l.wrappedLogger.Core().Enabled(zapcore.DebugLevel)).To(Equal(debugEnabled))
			},
			Entry("production", environments.Production, false),
			Entry("staging", environments.Staging, true),
			Entry("development", environments.Development, true),
			Entry("test", environments.Test, false),
			Entry("unknown falls back to production", environments.Environment("unknown"), false),
		)
	})

	Describe("levels", func() {
		It("writes each level with its fields", func() {
			l, logs := observed(zapcore.DebugLevel)

			l.Debug("[Sweep][Start]", map[string]string{"batch": "200"})
			l.Info("[CreateOrder] created", map[string]string{"order_id": "7"})
			l.Warn("[Verify] oracle slow")
			l.Error("[Release][SubmitTransition]", map[string]string{"error": "ledger down"})

			entries := logs.AllUntimed()
			Expect(entries).To(HaveLen(4))
			Expect(entries[0].Level).To(Equal(zapcore.DebugLevel))
			Expect(entries[0].ContextMap()).To(HaveKeyWithValue("batch", "200"))
			Expect(entries[2].Level).To(Equal(zapcore.WarnLevel))
			Expect(entries[2].Context).To(BeEmpty())
			Expect(entries[3].ContextMap()).To(HaveKeyWithValue("error", "ledger down"))
		})

		It("skips entries below the configured level", func() {
			l, logs := observed(zapcore.InfoLevel)

			l.Debug("noise", map[string]string{"k": "v"})
			Expect(logs.Len()).To(BeZero())
		})

		It("runs the fatal hook", func() {
			hook := &fatalHook{}
			core, _ := observer.New(zapcore.DebugLevel)
			l := &Logger{wrappedLogger: zap.New(core, zap.WithFatalHook(hook))}

			l.Fatal("[Init][ledger.New]", map[string]string{"error": "dial tcp"})
			Expect(hook.called).To(BeTrue())
		})
	})

	Describe("#With", func() {
		It("returns a child logger carrying the component fields", func() {
			l, logs := observed(zapcore.InfoLevel)

			l.With(map[string]string{"component": "sweeper"}).Info("[Sweep] done")
			l.Info("[Sweep] parent")

			entries := logs.AllUntimed()
			Expect(entries[0].ContextMap()).To(HaveKeyWithValue("component", "sweeper"))
			Expect(entries[1].ContextMap()).NotTo(HaveKey("component"))
		})
	})

	Describe("#WithContext", func() {
		It("tags entries with the request id", func() {
			l, logs := observed(zapcore.InfoLevel)
			ctx := ContextWithRequestID(context.Background(), "req-42")

			Expect(RequestID(ctx)).To(Equal("req-42"))
			l.WithContext(ctx).Error("[CancelOrder]", map[string]string{"error": "boom"})

			Expect(logs.AllUntimed()[0].ContextMap()).To(HaveKeyWithValue("request_id", "req-42"))
		})

		It("returns the same logger without a request id", func() {
			l, _ := observed(zapcore.InfoLevel)

			Expect(l.WithContext(context.Background())).To(BeIdenticalTo(l))
			Expect(RequestID(nil)).To(BeEmpty())
		})
	})

	Describe("#transformStrMapToFields", func() {
		It("orders fields by key", func() {
			fields := transformStrMapToFields(map[string]string{
				"swap_id":  "9",
				"error":    "timeout",
				"maker_id": "m-1",
			})

			Expect(fields).To(Equal([]zap.Field{
				zap.String("error", "timeout"),
				zap.String("maker_id", "m-1"),
				zap.String("swap_id", "9"),
			}))
		})

		It("returns an empty slice for an empty map", func() {
			Expect(transformStrMapToFields(map[string]string{})).To(BeEmpty())
		})
	})
})
