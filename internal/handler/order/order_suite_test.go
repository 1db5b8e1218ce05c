package order_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOrderHandler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Order Handler Suite")
}
