package domain

type normalizeRequest struct {
	data []byte

	resp chan<- normalizeResult
}

type normalizeResult struct {
	data []byte
	err  error
}

type parallelNormalizer struct {
	delegate Normalizer

	requests chan normalizeRequest
}

// NewParallelNormalizer bounds the number of concurrently running
// normalizations to n
func NewParallelNormalizer(delegate Normalizer, n int) Normalizer {
	if n < 1 {
		n = 1
	}
	normalizer := &parallelNormalizer{
		delegate: delegate,
		requests: make(chan normalizeRequest),
	}
	for i := 0; i < n; i++ {
		go normalizer.loop()
	}
	return normalizer
}

func (t *parallelNormalizer) Normalize(data []byte) ([]byte, error) {
	res := make(chan normalizeResult)
	t.requests <- normalizeRequest{data, res}
	result := <-res
	return result.data, result.err
}

func (t *parallelNormalizer) loop() {
	for req := range t.requests {
		out, err := t.delegate.Normalize(req.data)
		req.resp <- normalizeResult{data: out, err: err}
	}
}
