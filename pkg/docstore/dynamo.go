/*
 * Copyright 2026 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package docstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/carverauto/fleetrelay/pkg/models"
)

const defaultOwnerIndex = "owner-index"

// dynamoAPI is the slice of the DynamoDB client the store uses.
type dynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements Service on DynamoDB tables.
type DynamoStore struct {
	client dynamoAPI
	cfg    models.DocStoreConfig
	now    func() time.Time
}

// NewDynamoStore builds the client from the ambient AWS config chain.
func NewDynamoStore(ctx context.Context, cfg models.DocStoreConfig) (*DynamoStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.OwnerIndex == "" {
		cfg.OwnerIndex = defaultOwnerIndex
	}

	return &DynamoStore{
		client: dynamodb.NewFromConfig(awsCfg, clientOpts...),
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (d *DynamoStore) RobotsForOwner(ctx context.Context, owner string) ([]models.Robot, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.cfg.RobotsTable),
		IndexName:              aws.String(d.cfg.OwnerIndex),
		KeyConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ownership query for %s failed: %w", owner, err)
	}

	robots := make([]models.Robot, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &robots); err != nil {
		return nil, fmt.Errorf("failed to decode ownership records: %w", err)
	}

	return robots, nil
}

// SaveMissions writes the mission document through the fixed-point
// conversion pass so waypoint floats reach the store as exact decimal
// numbers.
func (d *DynamoStore) SaveMissions(ctx context.Context, doc *models.MissionDocument) error {
	missions := make([]interface{}, 0, len(doc.Missions))
	for _, m := range doc.Missions {
		missions = append(missions, m)
	}

	missionsAttr, err := attrValue(missions)
	if err != nil {
		return fmt.Errorf("mission document for %s is not storable: %w", doc.RobotID, err)
	}

	item := map[string]types.AttributeValue{
		"robot_id":   &types.AttributeValueMemberS{Value: doc.RobotID},
		"missions":   missionsAttr,
		"updated_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", d.now().Unix())},
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.cfg.MissionsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("mission write for %s failed: %w", doc.RobotID, err)
	}

	return nil
}

func (d *DynamoStore) GetMissions(ctx context.Context, robotID string) (*models.MissionDocument, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.cfg.MissionsTable),
		Key: map[string]types.AttributeValue{
			"robot_id": &types.AttributeValueMemberS{Value: robotID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mission read for %s failed: %w", robotID, err)
	}

	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var doc models.MissionDocument
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode mission document for %s: %w", robotID, err)
	}

	return &doc, nil
}

var _ Service = (*DynamoStore)(nil)
