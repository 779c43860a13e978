package bench

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/optbench/internal/config"
	"github.com/born-ml/optbench/internal/nn"
	"github.com/born-ml/optbench/internal/tensor"
)

// bigram is a causal bigram language model: row W[prev] holds the logits of
// the next token. Token streams come from a seeded Markov chain, so the
// achievable validation perplexity is the chain's entropy rate.
type bigram struct {
	w     *nn.Parameter
	vocab int
	train pairCounts
	val   pairCounts
}

// pairCounts summarizes a token stream as next-token counts per context.
type pairCounts struct {
	counts []float64 // [vocab × vocab], counts[prev*vocab+next]
	rows   []float64 // occurrences of each prev
	total  float64   // number of (prev, next) pairs
}

func newBigram(cfg config.TaskConfig, seed int64) (*bigram, error) {
	// A stream needs at least one (prev, next) pair.
	err := checkBounds(TaskBigram,
		bound{"vocab_size", cfg.VocabSize, 1},
		bound{"train_tokens", cfg.TrainTokens, 2},
		bound{"val_tokens", cfg.ValTokens, 2},
	)
	if err != nil {
		return nil, err
	}

	v := cfg.VocabSize
	transitions := markovChain(v, seed)

	return &bigram{
		w:     nn.NewParameter("W", tensor.Zeros(tensor.Shape{v, v})),
		vocab: v,
		train: countPairs(sampleTokens(transitions, cfg.TrainTokens, seed, 2), v),
		val:   countPairs(sampleTokens(transitions, cfg.ValTokens, seed, 3), v),
	}, nil
}

// markovChain draws a row-stochastic transition matrix with peaked rows.
func markovChain(v int, seed int64) [][]float64 {
	logits := distuv.Normal{Mu: 0, Sigma: 2, Src: newSource(seed, 1)}
	rows := make([][]float64, v)
	for i := range rows {
		row := make([]float64, v)
		for j := range row {
			row[j] = logits.Rand()
		}
		floats.AddConst(-floats.LogSumExp(row), row)
		for j := range row {
			row[j] = math.Exp(row[j])
		}
		rows[i] = row
	}
	return rows
}

func sampleTokens(transitions [][]float64, n int, seed int64, stream uint64) []int {
	src := newSource(seed, stream)
	next := make([]distuv.Categorical, len(transitions))
	for i, row := range transitions {
		next[i] = distuv.NewCategorical(row, src)
	}

	tokens := make([]int, n)
	for i := 1; i < n; i++ {
		tokens[i] = int(next[tokens[i-1]].Rand())
	}
	return tokens
}

func countPairs(tokens []int, v int) pairCounts {
	pc := pairCounts{counts: make([]float64, v*v), rows: make([]float64, v)}
	for i := 1; i < len(tokens); i++ {
		prev, cur := tokens[i-1], tokens[i]
		pc.counts[prev*v+cur]++
		pc.rows[prev]++
		pc.total++
	}
	return pc
}

func (b *bigram) Name() string            { return TaskBigram }
func (b *bigram) LossName() string        { return "nll" }
func (b *bigram) Params() []*nn.Parameter { return []*nn.Parameter{b.w} }

// nll returns the mean next-token negative log-likelihood of pc and,
// when grad is non-nil, writes dNLL/dW into it.
func (b *bigram) nll(pc pairCounts, grad []float64) float64 {
	w := b.w.Tensor().Data()
	v := b.vocab
	loss := 0.0
	for prev := 0; prev < v; prev++ {
		if pc.rows[prev] == 0 {
			continue
		}
		logits := w[prev*v : (prev+1)*v]
		counts := pc.counts[prev*v : (prev+1)*v]
		lse := floats.LogSumExp(logits)
		for j, z := range logits {
			loss += counts[j] * (lse - z)
			if grad != nil {
				grad[prev*v+j] = (pc.rows[prev]*math.Exp(z-lse) - counts[j]) / pc.total
			}
		}
	}
	return loss / pc.total
}

func (b *bigram) Loss() (float64, error) {
	grad := make([]float64, b.vocab*b.vocab)
	loss := b.nll(b.train, grad)
	b.w.SetGrad(tensor.MustFromSlice(grad, tensor.Shape{b.vocab, b.vocab}))
	return loss, nil
}

// Evaluate reports validation NLL and perplexity.
func (b *bigram) Evaluate() Metrics {
	nll := b.nll(b.val, nil)
	return Metrics{Loss: nll, LossName: "nll", Metric: Perplexity(nll), MetricName: "ppl"}
}
