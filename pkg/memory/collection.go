package memory

import (
	"context"

	pb "github.com/qdrant/go-client/qdrant"
)

// DefaultVectorSize is the embedding width of collections created by
// [EnsureCollection]. Retrieval filters on payload only, so vectors are
// whatever the memory writer stores.
const DefaultVectorSize = 1024

// CollectionAdmin creates collections and payload indexes.
// [*qdrant.Client] satisfies it.
type CollectionAdmin interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *pb.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *pb.CreateFieldIndexCollection) error
}

// EnsureCollection creates collection with the payload indexes
// [QdrantRetriever] filters on, unless it already exists. An existing
// collection is left untouched. vectorSize 0 uses [DefaultVectorSize].
func EnsureCollection(ctx context.Context, admin CollectionAdmin, collection string, vectorSize uint64) (created bool, err error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if vectorSize == 0 {
		vectorSize = DefaultVectorSize
	}

	exists, err := admin.CollectionExists(ctx, collection)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	err = admin.CreateCollection(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     vectorSize,
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return false, err
	}

	indexes := []struct {
		field string
		typ   pb.FieldType
	}{
		{FieldMemoryID, pb.FieldType_FieldTypeKeyword},
		{FieldStrategyID, pb.FieldType_FieldTypeKeyword},
		{FieldNamespace, pb.FieldType_FieldTypeKeyword},
		{FieldContent, pb.FieldType_FieldTypeText},
	}
	for _, idx := range indexes {
		err := admin.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      idx.field,
			FieldType:      idx.typ.Enum(),
			Wait:           pb.PtrOf(true),
		})
		if err != nil {
			return true, err
		}
	}
	return true, nil
}
