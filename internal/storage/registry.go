package storage

import (
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"histdata/internal/model"
)

// LoaderFor returns the concrete Loader for kind, backed by pool. The
// tagged-union dispatch in model.Kind guarantees at compile time that every
// kind this switch handles has a loader; an unhandled kind is a startup-time
// configuration error, not a runtime panic deep in the pipeline.
func LoaderFor(kind model.Kind, pool *pgxpool.Pool, subBatchSize int) (Loader, error) {
	switch kind {
	case model.KindOHLCV:
		return &OHLCVLoader{Pool: pool, SubBatchSize: subBatchSize}, nil
	case model.KindTrade:
		return &TradeLoader{Pool: pool, SubBatchSize: subBatchSize}, nil
	case model.KindTBBO:
		return &TBBOLoader{Pool: pool, SubBatchSize: subBatchSize}, nil
	case model.KindStatistics:
		return &StatisticsLoader{Pool: pool, SubBatchSize: subBatchSize}, nil
	case model.KindDefinition:
		return &DefinitionLoader{Pool: pool, SubBatchSize: subBatchSize}, nil
	default:
		return nil, fmt.Errorf("storage: no loader registered for kind %v", kind)
	}
}
