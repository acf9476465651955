package grader

// Embedder produces the query-side embedding. It must be the same model and
// dimension the corpus chunks were embedded with.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// Retriever pairs an embedder with a built index to answer "which passages
// are relevant to this question". The index is shared read-only.
type Retriever struct {
	embedder Embedder
	index    *Index
}

func NewRetriever(embedder Embedder, index *Index) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
	}
}

// Retrieve returns the top-k context passages for the question text.
func (r *Retriever) Retrieve(question string, k int) ([]string, error) {
	vec, err := r.embedder.Embed(question)
	if err != nil {
		return nil, err
	}
	return r.index.Search(vec, k)
}
