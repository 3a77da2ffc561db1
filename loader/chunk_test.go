package loader_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/xcpflash/loader"
)

func collect(total, max int) (offsets, sizes []int) {
	chunks := loader.Chunks(total, max)
	for offset, n, ok := chunks.Next(); ok; offset, n, ok = chunks.Next() {
		offsets = append(offsets, offset)
		sizes = append(sizes, n)
	}

	return offsets, sizes
}

var _ = Describe("Chunks()", func() {
	It("covers the transfer in ceil(total/max) contiguous pieces", func() {
		for _, max := range []int{1, 5, 7, 254} {
			for _, total := range []int{1, 4, 5, 6, 13, 14, 255, 1000} {
				offsets, sizes := collect(total, max)

				Expect(sizes).To(HaveLen((total + max - 1) / max))

				sum := 0
				for i, n := range sizes {
					Expect(offsets[i]).To(Equal(sum))
					Expect(n).To(BeNumerically(">", 0))
					Expect(n).To(BeNumerically("<=", max))

					// only the first piece may be short
					if i > 0 {
						Expect(n).To(Equal(max))
					}
					sum += n
				}
				Expect(sum).To(Equal(total))
			}
		}
	})

	It("puts the remainder first", func() {
		_, sizes := collect(10, 4)
		Expect(sizes).To(Equal([]int{2, 4, 4}))
	})

	It("yields nothing for an empty transfer", func() {
		_, sizes := collect(0, 4)
		Expect(sizes).To(BeEmpty())
	})
})
