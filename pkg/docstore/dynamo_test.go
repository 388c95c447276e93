package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetrelay/pkg/models"
)

type fakeDynamo struct {
	queryOut  *dynamodb.QueryOutput
	getOut    *dynamodb.GetItemOutput
	err       error
	lastQuery *dynamodb.QueryInput
	lastPut   *dynamodb.PutItemInput
	lastGet   *dynamodb.GetItemInput
}

func (f *fakeDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = params
	if f.err != nil {
		return nil, f.err
	}

	return f.queryOut, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = params
	if f.err != nil {
		return nil, f.err
	}

	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGet = params
	if f.err != nil {
		return nil, f.err
	}

	return f.getOut, nil
}

func newTestStore(fake *fakeDynamo) *DynamoStore {
	return &DynamoStore{
		client: fake,
		cfg: models.DocStoreConfig{
			RobotsTable:   "robots",
			MissionsTable: "missions",
			OwnerIndex:    defaultOwnerIndex,
		},
		now: func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func TestRobotsForOwnerQueriesOwnerIndex(t *testing.T) {
	fake := &fakeDynamo{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			{
				"robot_id": &types.AttributeValueMemberS{Value: "R1"},
				"owner":    &types.AttributeValueMemberS{Value: "a@x.com"},
				"name":     &types.AttributeValueMemberS{Value: "hauler"},
			},
		},
	}}
	store := newTestStore(fake)

	robots, err := store.RobotsForOwner(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, robots, 1)
	assert.Equal(t, "R1", robots[0].RobotID)
	assert.Equal(t, "hauler", robots[0].Name)

	require.NotNil(t, fake.lastQuery)
	assert.Equal(t, "robots", *fake.lastQuery.TableName)
	assert.Equal(t, defaultOwnerIndex, *fake.lastQuery.IndexName)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "a@x.com"},
		fake.lastQuery.ExpressionAttributeValues[":owner"])
}

func TestRobotsForOwnerQueryFailure(t *testing.T) {
	store := newTestStore(&fakeDynamo{err: errors.New("throttled")})

	_, err := store.RobotsForOwner(context.Background(), "a@x.com")
	require.Error(t, err)
}

func TestSaveMissionsConvertsFloatsToFixedPoint(t *testing.T) {
	fake := &fakeDynamo{}
	store := newTestStore(fake)

	err := store.SaveMissions(context.Background(), &models.MissionDocument{
		RobotID: "R1",
		Missions: []map[string]interface{}{
			{"name": "patrol", "waypoints": []interface{}{
				map[string]interface{}{"lat": 48.858093, "lon": 2.294694},
			}},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, fake.lastPut)
	assert.Equal(t, "missions", *fake.lastPut.TableName)

	item := fake.lastPut.Item
	assert.Equal(t, &types.AttributeValueMemberS{Value: "R1"}, item["robot_id"])
	assert.Equal(t, "1700000000", item["updated_at"].(*types.AttributeValueMemberN).Value)

	missions := item["missions"].(*types.AttributeValueMemberL).Value
	require.Len(t, missions, 1)

	mission := missions[0].(*types.AttributeValueMemberM).Value
	waypoints := mission["waypoints"].(*types.AttributeValueMemberL).Value
	waypoint := waypoints[0].(*types.AttributeValueMemberM).Value

	// Floats reach the store as exact decimal strings.
	assert.Equal(t, "48.858093", waypoint["lat"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "2.294694", waypoint["lon"].(*types.AttributeValueMemberN).Value)
}

func TestSaveMissionsRejectsUnstorableValue(t *testing.T) {
	fake := &fakeDynamo{}
	store := newTestStore(fake)

	err := store.SaveMissions(context.Background(), &models.MissionDocument{
		RobotID:  "R1",
		Missions: []map[string]interface{}{{"ch": make(chan int)}},
	})
	require.Error(t, err)
	assert.Nil(t, fake.lastPut, "nothing is written when conversion fails")
}

func TestGetMissions(t *testing.T) {
	fake := &fakeDynamo{getOut: &dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			"robot_id": &types.AttributeValueMemberS{Value: "R1"},
			"missions": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"name":  &types.AttributeValueMemberS{Value: "patrol"},
					"speed": &types.AttributeValueMemberN{Value: "0.75"},
				}},
			}},
			"updated_at": &types.AttributeValueMemberN{Value: "1700000000"},
		},
	}}
	store := newTestStore(fake)

	doc, err := store.GetMissions(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", doc.RobotID)
	require.Len(t, doc.Missions, 1)
	assert.Equal(t, "patrol", doc.Missions[0]["name"])

	require.NotNil(t, fake.lastGet)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "R1"}, fake.lastGet.Key["robot_id"])
}

func TestGetMissionsNotFound(t *testing.T) {
	store := newTestStore(&fakeDynamo{getOut: &dynamodb.GetItemOutput{}})

	_, err := store.GetMissions(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}
