// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
)

// Load reads the TOML or JSON document at path (format picked by
// extension, viper's own content-format detection as a fallback for
// extensionless files), walks it for env:/file: substitution, validates
// it against documentSchema, and decodes it into a Root.
func Load(path string) (*Root, error) {
	v := viper.New()

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	nameWithoutExt := strings.TrimSuffix(filename, ext)

	v.SetConfigName(nameWithoutExt)
	v.AddConfigPath(dir)
	if ext != "" {
		v.SetConfigType(strings.TrimPrefix(ext, "."))
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, perr.ConfigInvalid(fmt.Sprintf("reading %s: %v", path, err))
	}

	raw := v.AllSettings()

	substituted, err := substituteTree(raw)
	if err != nil {
		return nil, err
	}

	if err := Validate(substituted); err != nil {
		return nil, err
	}

	var root Root
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &root,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, perr.ConfigInvalid(err.Error())
	}
	if err := dec.Decode(substituted); err != nil {
		return nil, perr.ConfigInvalid(err.Error())
	}

	return &root, nil
}
