package reservoir_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
	"github.com/san-kum/reservoir/internal/reservoir"
)

var _ = Describe("Reservoir", func() {
	var (
		params reservoir.Params
		res    *reservoir.Reservoir
	)

	BeforeEach(func() {
		params = reservoir.Params{
			A:    mat.NewDense(2, 2, nil),
			B:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			C:    mat.NewDense(2, 1, nil),
			Rs:   mat.NewVecDense(2, []float64{0.5, 0.5}),
			Xs:   mat.NewVecDense(2, []float64{0.5, 0.5}),
			Cs:   mat.NewVecDense(1, []float64{0}),
			DelT: 0.01,
			Gam:  1,
		}
		var err error
		res, err = reservoir.New(params)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("bias calibration", func() {
		It("stores atanh(rs) - B·xs for a decoupled reservoir", func() {
			d := res.Bias()
			Expect(d.AtVec(0)).To(BeNumerically("~", math.Atanh(0.5)-0.5, 1e-15))
			Expect(d.AtVec(1)).To(BeNumerically("~", math.Atanh(0.5)-0.5, 1e-15))
		})

		It("makes the equilibrium a zero of the field", func() {
			dr, err := res.Field(params.Rs, params.Xs, params.Cs)
			Expect(err).NotTo(HaveOccurred())
			Expect(dr.Norm(2)).To(BeNumerically("<", 1e-14))
		})
	})

	Context("starting at rest", func() {
		It("relaxes toward the equilibrium under a constant drive", func() {
			x := mat.NewDense(2, 404, nil)
			for j := 0; j < 404; j++ {
				x.Set(0, j, 0.5)
				x.Set(1, j, 0.5)
			}

			states, err := res.Train(context.Background(), x, params.Cs)
			Expect(err).NotTo(HaveOccurred())

			_, cols := states.Dims()
			Expect(cols).To(Equal(401))
			Expect(states.At(0, 0)).To(Equal(0.0))

			// t = 4 gives r = 0.5(1 - e^-4) with gam = 1.
			want := 0.5 * (1 - math.Exp(-4))
			Expect(states.At(0, cols-1)).To(BeNumerically("~", want, 1e-8))
			Expect(states.At(1, cols-1)).To(BeNumerically("~", want, 1e-8))
		})
	})

	Context("starting at the equilibrium", func() {
		BeforeEach(func() {
			Expect(res.SetState(params.Rs)).To(Succeed())
		})

		It("stays there for ten propagated steps", func() {
			window := mat.NewDense(2, 4, []float64{
				0.5, 0.5, 0.5, 0.5,
				0.5, 0.5, 0.5, 0.5,
			})
			for i := 0; i < 10; i++ {
				_, err := res.Propagate(window, params.Cs)
				Expect(err).NotTo(HaveOccurred())
			}
			r := res.State()
			Expect(r.AtVec(0)).To(BeNumerically("~", 0.5, 1e-6))
			Expect(r.AtVec(1)).To(BeNumerically("~", 0.5, 1e-6))
		})

		It("stays there in closed loop with an identity readout", func() {
			loop, err := res.CloseLoop(mat.NewDense(2, 2, []float64{1, 0, 0, 1}))
			Expect(err).NotTo(HaveOccurred())

			states, err := loop.Generate(context.Background(), reservoir.NewConstantControl(mat.NewVecDense(1, nil), 50))
			Expect(err).NotTo(HaveOccurred())
			Expect(states.At(0, 49)).To(BeNumerically("~", 0.5, 1e-9))
			Expect(loop.Output().AtVec(1)).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Describe("argument checks", func() {
		It("rejects a window that is not four samples wide", func() {
			_, err := res.Propagate(mat.NewDense(2, 5, nil), params.Cs)
			Expect(err).To(MatchError(dynamo.ErrShape))
		})

		It("rejects a training signal shorter than one window", func() {
			_, err := res.Train(context.Background(), mat.NewDense(2, 3, nil), params.Cs)
			Expect(err).To(MatchError(dynamo.ErrPrecondition))
		})

		It("rejects a non-positive time step", func() {
			params.DelT = 0
			_, err := reservoir.New(params)
			Expect(err).To(MatchError(dynamo.ErrPrecondition))
		})
	})
})
