package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/dwarvesf/escrow-backend/internal/types/environments"
)

var _ = Describe("Logger Environment", func() {
	It("samples repeated entries in production only", func() {
		Expect(configFor(environments.Production).Sampling).NotTo(BeNil())
		Expect(configFor(environments.Staging).Sampling).To(BeNil())
		Expect(configFor(environments.Development).Sampling).To(BeNil())
	})

	It("writes json to stdout outside development", func() {
		for _, env := range []environments.Environment{environments.Production, environments.Staging} {
			cfg := configFor(env)
			Expect(cfg.Encoding).To(Equal("json"))
			Expect(cfg.OutputPaths).To(Equal([]string{"stdout"}))
			Expect(cfg.EncoderConfig.TimeKey).To(Equal("timestamp"))
		}
	})

	It("keeps stack traces out of staging", func() {
		cfg := configFor(environments.Staging)
		Expect(cfg.DisableStacktrace).To(BeTrue())
		Expect(cfg.Level.Level()).To(Equal(zap.DebugLevel))
	})

	It("uses a colored console in development", func() {
		cfg := configFor(environments.Development)
		Expect(cfg.Encoding).To(Equal("console"))
		Expect(cfg.Development).To(BeTrue())
	})

	It("discards output in tests", func() {
		cfg := configFor(environments.Test)
		Expect(cfg.OutputPaths).To(BeEmpty())
		Expect(cfg.ErrorOutputPaths).To(BeEmpty())
	})
})
