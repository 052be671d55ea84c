package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const skPrefixRoute = "ROUTE#"

// dynamodbAPI: минимальный интерфейс DynamoDB, нужный DynamoStore.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore хранит маршруты в одной таблице с ключами PK/SK:
//
//	PK = SESSION#<session id>
//	SK = ROUTE#<RFC3339Nano>#<route id>
//
// Сортировка по SK даёт порядок сохранения.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore создаёт хранилище поверх таблицы tableName.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("routes: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("routes: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func routeSK(r Route) string {
	return skPrefixRoute + r.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + r.ID
}

// Save записывает маршрут. Повторная запись того же SK отклоняется условием.
func (s *DynamoStore) Save(ctx context.Context, sessionID string, r Route) (Route, error) {
	if sessionID == "" {
		return Route{}, errors.New("routes: session id is required")
	}
	r = prepare(sessionID, r, s.now)

	stops, err := json.Marshal(r.Stops)
	if err != nil {
		return Route{}, fmt.Errorf("routes: marshal stops: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK":        &types.AttributeValueMemberS{Value: routeSK(r)},
			"routeId":   &types.AttributeValueMemberS{Value: r.ID},
			"name":      &types.AttributeValueMemberS{Value: r.Name},
			"stops":     &types.AttributeValueMemberS{Value: string(stops)},
			"createdAt": &types.AttributeValueMemberS{Value: r.CreatedAt.UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return Route{}, fmt.Errorf("routes: save: %w", err)
	}
	return r, nil
}

// List читает все маршруты сессии (с пагинацией Query).
func (s *DynamoStore) List(ctx context.Context, sessionID string) ([]Route, error) {
	var (
		out      []Route
		startKey map[string]types.AttributeValue
	)

	for {
		resp, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixRoute},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("routes: list: %w", err)
		}

		for _, item := range resp.Items {
			r, err := itemToRoute(sessionID, item)
			if err != nil {
				return nil, fmt.Errorf("routes: list decode: %w", err)
			}
			out = append(out, r)
		}

		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}

	return out, nil
}

func itemToRoute(sessionID string, item map[string]types.AttributeValue) (Route, error) {
	id, err := strAttr(item, "routeId")
	if err != nil {
		return Route{}, err
	}
	name, _ := strAttr(item, "name")
	stopsJSON, err := strAttr(item, "stops")
	if err != nil {
		return Route{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return Route{}, err
	}

	r := Route{ID: id, SessionID: sessionID, Name: name}
	if err := json.Unmarshal([]byte(stopsJSON), &r.Stops); err != nil {
		return Route{}, fmt.Errorf("attribute \"stops\": %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Route{}, fmt.Errorf("attribute \"createdAt\": %w", err)
	}
	return r, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}
