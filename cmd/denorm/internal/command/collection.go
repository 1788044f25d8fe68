// Copyright 2025 The redux-io Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taoh/redux-io/cmd/denorm/internal/filter"
	"github.com/taoh/redux-io/pkg/denorm"
)

// NewCollectionCommand denormalizes an ordered list of records, optionally
// keeping only those matching a CEL predicate.
func NewCollectionCommand() *cobra.Command {
	var schema, filterExpr string
	var ids []string

	cmd := &cobra.Command{
		Use:   "collection",
		Short: "denormalize an ordered collection of records",
		Example: "  denorm collection --state state.json --path post=data.posts \\\n" +
			"    --schema post --ids 1,2,3 --filter 'item.published == true'",
		RunE: func(cmd *cobra.Command, args []string) error {
			if schema == "" || len(ids) == 0 {
				return fmt.Errorf("--schema and --ids are required")
			}
			d, err := newDenormalizer()
			if err != nil {
				return err
			}
			result, err := d.DenormalizeCollection(ids, denorm.WithSchema(schema))
			if err != nil {
				return err
			}

			items := result.Items
			if filterExpr != "" {
				f, err := filter.Compile(filterExpr)
				if err != nil {
					return err
				}
				kept := make([]map[string]any, 0, len(items))
				for _, item := range items {
					match, err := f.Match(item)
					if err != nil {
						return err
					}
					if match {
						kept = append(kept, item)
					}
				}
				items = kept
			}
			return printResult(cmd, items)
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "", "Schema name of the collection")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Record ids, in order")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "CEL predicate over `item`, e.g. item.published == true")
	return cmd
}
