package vector

import (
	"context"
	"fmt"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const listPageSize = 256

// QdrantRepository implements Repository using Qdrant over gRPC.
//
// The collection is created on first upsert with cosine distance and the
// dimension of the observed embeddings. The embedding model must therefore
// stay the same across restarts, or stored vectors become incomparable.
type QdrantRepository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string

	mu      sync.Mutex
	ensured bool
}

// NewQdrant creates a Qdrant-backed repository.
func NewQdrant(ctx context.Context, host string, port int, collection string) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantRepository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// ensureCollection creates the collection if it does not exist yet.
func (r *QdrantRepository) ensureCollection(ctx context.Context, dim int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ensured {
		return nil
	}

	resp, err := r.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant list collections: %w", err)
	}
	for _, c := range resp.Collections {
		if c.Name == r.collection {
			r.ensured = true
			return nil
		}
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	r.ensured = true
	return nil
}

func (r *QdrantRepository) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := r.ensureCollection(ctx, len(docs[0].Vector)); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		payload := map[string]*pb.Value{
			"content":     {Kind: &pb.Value_StringValue{StringValue: d.Content}},
			"chunk_id":    {Kind: &pb.Value_StringValue{StringValue: d.ChunkID}},
			"source":      {Kind: &pb.Value_StringValue{StringValue: d.Meta.Source}},
			"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(d.Meta.ChunkIndex)}},
			"category":    {Kind: &pb.Value_StringValue{StringValue: d.Meta.Category}},
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: d.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}}},
			Payload: payload,
		}
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	return err
}

func (r *QdrantRepository) Search(ctx context.Context, vec []float32, topK int) ([]SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if missingCollection(err) {
			return nil, nil
		}
		return nil, err
	}

	results := make([]SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = SearchResult{
			ChunkID: pt.Payload["chunk_id"].GetStringValue(),
			Score:   pt.Score,
			Content: pt.Payload["content"].GetStringValue(),
			Meta:    payloadMeta(pt.Payload),
		}
	}
	return results, nil
}

func (r *QdrantRepository) List(ctx context.Context) ([]StoredChunk, error) {
	var (
		out    []StoredChunk
		offset *pb.PointId
		limit  = uint32(listPageSize)
	)
	for {
		resp, err := r.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: r.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			if missingCollection(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, pt := range resp.Result {
			out = append(out, StoredChunk{
				ChunkID: pt.Payload["chunk_id"].GetStringValue(),
				Content: pt.Payload["content"].GetStringValue(),
				Meta:    payloadMeta(pt.Payload),
			})
		}
		if resp.NextPageOffset == nil || len(resp.Result) == 0 {
			return out, nil
		}
		offset = resp.NextPageOffset
	}
}

func (r *QdrantRepository) CountBySource(ctx context.Context, source string) (int, error) {
	exact := true
	resp, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Filter:         sourceFilter(source),
		Exact:          &exact,
	})
	if err != nil {
		if missingCollection(err) {
			return 0, nil
		}
		return 0, err
	}
	return int(resp.Result.Count), nil
}

func (r *QdrantRepository) DeleteBySource(ctx context.Context, source string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: sourceFilter(source)},
		},
	})
	if missingCollection(err) {
		return nil
	}
	return err
}

func (r *QdrantRepository) DeleteAll(ctx context.Context) error {
	// An empty filter matches every point in the collection.
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: &pb.Filter{}},
		},
	})
	if missingCollection(err) {
		return nil
	}
	return err
}

func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// missingCollection reports whether err is qdrant's response for a collection
// that has not been created yet. The collection is created lazily on first
// upsert, so reads and deletes before any upload treat this as an empty
// index rather than a failure.
func missingCollection(err error) bool {
	return err != nil && status.Code(err) == codes.NotFound
}

func sourceFilter(source string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "source",
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: source}},
				},
			},
		}},
	}
}

func payloadMeta(payload map[string]*pb.Value) Metadata {
	return Metadata{
		Source:     payload["source"].GetStringValue(),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		Category:   payload["category"].GetStringValue(),
	}
}

var _ Repository = (*QdrantRepository)(nil)
