// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
)

// documentSchema is the top-level shape every config document must
// satisfy after substitution and before per-stage decode runs: four lists of
// tagged objects, each carrying at least "type" and "tag". Per-type
// field shapes are enforced later by each stage's own Decode, not by
// this schema, the same division of labor the teacher's own
// pkg/schema.Validate draws between "is this a well-formed document"
// and "does this specific section make sense".
const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"log_level": {"type": "string"},
		"debug_addr": {"type": "string"},
		"time_tracing": {"type": "boolean"},
		"inbounds": {"type": "array", "items": {"$ref": "#/definitions/stage"}},
		"protocols": {"type": "array", "items": {"$ref": "#/definitions/stage"}},
		"pipes": {"type": "array", "items": {"$ref": "#/definitions/stage"}},
		"outbounds": {"type": "array", "items": {"$ref": "#/definitions/stage"}}
	},
	"definitions": {
		"stage": {
			"type": "object",
			"required": ["type", "tag"],
			"properties": {
				"type": {"type": "string"},
				"tag": {"type": "string"}
			}
		}
	}
}`

// Validate checks a decoded config document (as a generic
// map[string]interface{}/[]interface{} tree, the shape
// encoding/json/viper produce) against documentSchema.
func Validate(doc interface{}) error {
	sch, err := jsonschema.CompileString("config.schema.json", documentSchema)
	if err != nil {
		return perr.ConfigInvalid(err.Error())
	}
	if err := sch.Validate(doc); err != nil {
		return perr.ConfigInvalid(err.Error())
	}
	return nil
}
