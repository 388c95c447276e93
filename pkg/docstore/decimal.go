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
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// attrValue converts a decoded JSON value into a DynamoDB attribute.
// Floating-point numbers are rewritten to fixed-point decimal strings
// here, at the write boundary only: the store's number type is
// precision-sensitive and must never see a silently re-rounded float.
func attrValue(v interface{}) (types.AttributeValue, error) {
	switch t := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: t}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: t}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: formatFixed(t)}, nil
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(t)}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(t, 10)}, nil
	case json.Number:
		return &types.AttributeValueMemberN{Value: t.String()}, nil
	case map[string]interface{}:
		m := make(map[string]types.AttributeValue, len(t))

		for k, val := range t {
			av, err := attrValue(val)
			if err != nil {
				return nil, err
			}

			m[k] = av
		}

		return &types.AttributeValueMemberM{Value: m}, nil
	case []interface{}:
		l := make([]types.AttributeValue, 0, len(t))

		for _, val := range t {
			av, err := attrValue(val)
			if err != nil {
				return nil, err
			}

			l = append(l, av)
		}

		return &types.AttributeValueMemberL{Value: l}, nil
	case []map[string]interface{}:
		l := make([]types.AttributeValue, 0, len(t))

		for _, val := range t {
			av, err := attrValue(val)
			if err != nil {
				return nil, err
			}

			l = append(l, av)
		}

		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return nil, fmt.Errorf("unsupported document value of type %T", v)
	}
}

// formatFixed renders a float as a fixed-point decimal string with no
// exponent. Integral values drop the fractional part entirely so that
// a round-tripped count stays a count.
func formatFixed(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}
