package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/indexer"
)

func TestSources(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sources Suite")
}

var _ = Describe("settlementSource", func() {
	It("decodes one DecodedEvent per settlement log, ignoring its Data", func() {
		addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
		src := settlementSource(addr)

		events, err := src.Decode(types.Log{BlockNumber: 10, Index: 3, TxHash: common.HexToHash("0xaa")})
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(indexer.EventSettlement))
		Expect(events[0].BlockNumber).To(Equal(uint64(10)))
		Expect(events[0].LogIndex).To(Equal(uint64(3)))
	})
})

var _ = Describe("ethflowPlacementSource", func() {
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	src := ethflowPlacementSource(addr)

	It("decodes the trailing order uid out of the log data", func() {
		var uid domain.OrderUid
		uid[5] = 0x42
		data := make([]byte, 32+len(uid))
		copy(data[32:], uid[:])

		events, err := src.Decode(types.Log{Data: data})
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Kind).To(Equal(indexer.EventOrderPlacement))
		Expect(events[0].OrderUID).To(Equal(uid))
	})

	It("wraps the decode error when the log data is too short", func() {
		_, err := src.Decode(types.Log{Data: []byte{0x01}})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("ethflow order placement"))
	})
})

var _ = Describe("ethflowRefundSource", func() {
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	src := ethflowRefundSource(addr)

	It("decodes a refund event with the Refund kind", func() {
		var uid domain.OrderUid
		data := make([]byte, 32+len(uid))

		events, err := src.Decode(types.Log{Data: data})
		Expect(err).NotTo(HaveOccurred())
		Expect(events[0].Kind).To(Equal(indexer.EventRefund))
	})

	It("wraps the decode error when the log data is too short", func() {
		_, err := src.Decode(types.Log{Data: nil})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("ethflow order refund"))
	})
})
