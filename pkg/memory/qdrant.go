package memory

import (
	"context"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
)

// Payload field names of a memory record point.
const (
	FieldMemoryID   = "memory_id"
	FieldStrategyID = "strategy_id"
	FieldNamespace  = "namespace"
	FieldContent    = "content"
)

// DefaultCollection is the Qdrant collection memory records live in.
const DefaultCollection = "agent_memory"

// Scroller pages through points. [*qdrant.Client] satisfies it.
type Scroller interface {
	Scroll(ctx context.Context, req *pb.ScrollPoints) ([]*pb.RetrievedPoint, error)
}

// QdrantRetriever reads memory records from a Qdrant collection. Points
// are filtered on their memory, strategy and namespace payload fields; a
// non-empty query adds a full-text match on content, which requires a
// text index on that field.
type QdrantRetriever struct {
	db         Scroller
	collection string
}

// Compile-time interface compliance check.
var _ Retriever = (*QdrantRetriever)(nil)

// NewQdrantRetriever creates a retriever over collection. An empty name
// uses [DefaultCollection].
func NewQdrantRetriever(db Scroller, collection string) *QdrantRetriever {
	if collection == "" {
		collection = DefaultCollection
	}
	return &QdrantRetriever{db: db, collection: collection}
}

// Retrieve implements [Retriever].
func (r *QdrantRetriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]Record, error) {
	must := []*pb.Condition{
		pb.NewMatch(FieldMemoryID, req.MemoryID),
		pb.NewMatch(FieldStrategyID, req.StrategyID),
		pb.NewMatch(FieldNamespace, req.Namespace),
	}
	if req.Query != "" {
		must = append(must, pb.NewMatchText(FieldContent, req.Query))
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	points, err := r.db.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: r.collection,
		Filter:         &pb.Filter{Must: must},
		Limit:          pb.PtrOf(uint32(limit)),
		WithPayload:    pb.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		content := payload[FieldContent].GetStringValue()
		if content == "" {
			continue
		}
		records = append(records, Record{
			ID:         pointID(p.GetId()),
			Content:    content,
			Namespace:  payload[FieldNamespace].GetStringValue(),
			StrategyID: payload[FieldStrategyID].GetStringValue(),
		})
	}
	return records, nil
}

func pointID(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
