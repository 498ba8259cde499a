package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/rs/zerolog"
)

// batchSize is the BatchWriteItem limit
const batchSize = 25

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, mode Mode, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if mode == ModeLocal {
		// Build the client directly: LoadDefaultConfig probes the EC2 IMDS
		// endpoint, which hangs when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	if mode == ModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

func (s *DynamoDBStore) SaveReport(ctx context.Context, run types.RunRecord, numbers []types.NumberStatsRecord, daily []types.DailyCountRecord) error {
	// Children first so a listed run is always complete
	numberItems, err := marshalAll(numbers)
	if err != nil {
		return fmt.Errorf("failed to marshal number stats: %w", err)
	}
	if err := s.batchPut(ctx, s.config.NumberTable, numberItems); err != nil {
		return fmt.Errorf("failed to save number stats: %w", err)
	}

	dailyItems, err := marshalAll(daily)
	if err != nil {
		return fmt.Errorf("failed to marshal daily counts: %w", err)
	}
	if err := s.batchPut(ctx, s.config.DailyTable, dailyItems); err != nil {
		return fmt.Errorf("failed to save daily counts: %w", err)
	}

	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.RunsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug().
		Str("run_id", run.RunID).
		Int("numbers", len(numbers)).
		Int("days", len(daily)).
		Msg("run saved")
	return nil
}

func (s *DynamoDBStore) ListRuns(ctx context.Context) ([]types.RunRecord, error) {
	var (
		runs    []types.RunRecord
		lastKey map[string]dbtypes.AttributeValue
	)
	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.config.RunsTable),
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan runs: %w", err)
		}

		var page []types.RunRecord
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal runs: %w", err)
		}
		runs = append(runs, page...)

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	sortRuns(runs)
	return runs, nil
}

func (s *DynamoDBStore) GetRun(ctx context.Context, runID string) (types.RunRecord, error) {
	var runs []types.RunRecord
	if err := s.queryRun(ctx, s.config.RunsTable, runID, &runs); err != nil {
		return types.RunRecord{}, fmt.Errorf("failed to query run: %w", err)
	}
	if len(runs) == 0 {
		return types.RunRecord{}, ErrRunNotFound
	}
	return runs[0], nil
}

func (s *DynamoDBStore) GetNumberStats(ctx context.Context, runID string) ([]types.NumberStatsRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	var records []types.NumberStatsRecord
	if err := s.queryRun(ctx, s.config.NumberTable, runID, &records); err != nil {
		return nil, fmt.Errorf("failed to query number stats: %w", err)
	}
	return records, nil
}

func (s *DynamoDBStore) GetDailyCounts(ctx context.Context, runID string) ([]types.DailyCountRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	var records []types.DailyCountRecord
	if err := s.queryRun(ctx, s.config.DailyTable, runID, &records); err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	return records, nil
}

// DeleteRun removes a run and its children (query + batch delete)
func (s *DynamoDBStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}

	// The runs table comes first so a half-deleted run is never listed
	for _, table := range tableKeys(s.config) {
		if err := s.deletePartition(ctx, table, runID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table.name, err)
		}
	}
	s.logger.Info().Str("run_id", runID).Msg("run deleted")
	return nil
}

func (s *DynamoDBStore) Close() error { return nil }

// queryRun reads a whole RunID partition of table into out, in sort key order
func (s *DynamoDBStore) queryRun(ctx context.Context, table, runID string, out interface{}) error {
	keyCond := expression.Key("RunID").Equal(expression.Value(runID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	var (
		items   []map[string]dbtypes.AttributeValue
		lastKey map[string]dbtypes.AttributeValue
	)
	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(table),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return err
		}
		items = append(items, result.Items...)

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	return attributevalue.UnmarshalListOfMaps(items, out)
}

func (s *DynamoDBStore) deletePartition(ctx context.Context, table tableKey, runID string) error {
	keyCond := expression.Key(table.pk).Equal(expression.Value(runID))
	proj := expression.NamesList(expression.Name(table.pk), expression.Name(table.sk))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithProjection(proj).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	var lastKey map[string]dbtypes.AttributeValue
	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(table.name),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return err
		}

		requests := make([]dbtypes.WriteRequest, 0, len(result.Items))
		for _, item := range result.Items {
			requests = append(requests, dbtypes.WriteRequest{
				DeleteRequest: &dbtypes.DeleteRequest{
					Key: map[string]dbtypes.AttributeValue{
						table.pk: item[table.pk],
						table.sk: item[table.sk],
					},
				},
			})
		}
		if err := s.batchWrite(ctx, table.name, requests); err != nil {
			return err
		}

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return nil
}

func (s *DynamoDBStore) batchPut(ctx context.Context, table string, items []map[string]dbtypes.AttributeValue) error {
	requests := make([]dbtypes.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, dbtypes.WriteRequest{
			PutRequest: &dbtypes.PutRequest{Item: item},
		})
	}
	return s.batchWrite(ctx, table, requests)
}

// batchWrite sends requests in groups of 25, resending unprocessed items
func (s *DynamoDBStore) batchWrite(ctx context.Context, table string, requests []dbtypes.WriteRequest) error {
	for _, batch := range chunk(requests, batchSize) {
		pending := map[string][]dbtypes.WriteRequest{table: batch}
		for len(pending) > 0 {
			result, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return err
			}
			pending = result.UnprocessedItems
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func marshalAll[T any](records []T) ([]map[string]dbtypes.AttributeValue, error) {
	items := make([]map[string]dbtypes.AttributeValue, 0, len(records))
	for _, r := range records {
		item, err := attributevalue.MarshalMap(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// sortRuns orders runs newest first
func sortRuns(runs []types.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].GeneratedAt > runs[j].GeneratedAt
	})
}
