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

	"github.com/taoh/redux-io/pkg/descriptor"
)

// NewItemCommand denormalizes a single record addressed by schema and id.
func NewItemCommand() *cobra.Command {
	var schema, id string

	cmd := &cobra.Command{
		Use:   "item",
		Short: "denormalize one record into its nested object graph",
		Example: "  denorm item --state state.json --path user=data.users \\\n" +
			"    --schema user --id 1 --max-depth 3",
		RunE: func(cmd *cobra.Command, args []string) error {
			if schema == "" || id == "" {
				return fmt.Errorf("--schema and --id are required")
			}
			d, err := newDenormalizer()
			if err != nil {
				return err
			}
			item, err := d.DenormalizeItem(descriptor.Descriptor{ID: id, Type: schema})
			if err != nil {
				return err
			}
			return printResult(cmd, item)
		},
	}

	cmd.Flags().StringVar(&schema, "schema", "", "Schema name of the record")
	cmd.Flags().StringVar(&id, "id", "", "Record id")
	return cmd
}
