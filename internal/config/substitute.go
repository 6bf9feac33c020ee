// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-dataplane.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"os/user"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ClusterCockpit/cc-dataplane/internal/perr"
)

// substituteTree walks a decoded config tree (maps, slices, strings),
// rewriting every string value that carries an "env:" or "file:"
// prefix. It is applied before any stage-specific decode so every
// config field, not just path fields, benefits from it.
func substituteTree(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			replaced, err := substituteTree(child)
			if err != nil {
				return nil, err
			}
			val[k] = replaced
		}
		return val, nil
	case []interface{}:
		for i, child := range val {
			replaced, err := substituteTree(child)
			if err != nil {
				return nil, err
			}
			val[i] = replaced
		}
		return val, nil
	case string:
		return substituteString(val)
	default:
		return v, nil
	}
}

func substituteString(s string) (string, error) {
	switch {
	case strings.HasPrefix(s, "env:"):
		name := strings.TrimPrefix(s, "env:")
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", perr.ConfigInvalid(fmt.Sprintf("env var %q is not set", name))
		}
		return v, nil
	case strings.HasPrefix(s, "file:"):
		path := strings.TrimPrefix(s, "file:")
		b, err := os.ReadFile(path)
		if err != nil {
			return "", perr.ConfigInvalid(fmt.Sprintf("reading %q: %v", path, err))
		}
		return string(b), nil
	default:
		return s, nil
	}
}

var pathTokenPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ExpandPathTemplate expands every {{token}} occurrence in a path
// field. Recognized tokens: cwd, home, user, group, date, time,
// timestamp, uuid, random, random:N, hostname, env:NAME.
func ExpandPathTemplate(path string) (string, error) {
	var outerErr error
	expanded := pathTokenPattern.ReplaceAllStringFunc(path, func(match string) string {
		if outerErr != nil {
			return match
		}
		token := strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}")
		v, err := expandToken(token)
		if err != nil {
			outerErr = err
			return match
		}
		return v
	})
	if outerErr != nil {
		return "", outerErr
	}
	return expanded, nil
}

func expandToken(token string) (string, error) {
	now := time.Now()
	switch {
	case token == "cwd":
		wd, err := os.Getwd()
		if err != nil {
			return "", perr.ConfigInvalid(err.Error())
		}
		return wd, nil
	case token == "home":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", perr.ConfigInvalid(err.Error())
		}
		return home, nil
	case token == "user":
		u, err := user.Current()
		if err != nil {
			return "", perr.ConfigInvalid(err.Error())
		}
		return u.Username, nil
	case token == "group":
		u, err := user.Current()
		if err != nil {
			return "", perr.ConfigInvalid(err.Error())
		}
		g, err := user.LookupGroupId(u.Gid)
		if err != nil {
			return "", perr.ConfigInvalid(err.Error())
		}
		return g.Name, nil
	case token == "date":
		return now.Format("2006-01-02"), nil
	case token == "time":
		return now.Format("15-04-05"), nil
	case token == "timestamp":
		return strconv.FormatInt(now.Unix(), 10), nil
	case token == "uuid":
		return uuid.NewString(), nil
	case token == "random":
		return randomHex(8)
	case strings.HasPrefix(token, "random:"):
		n, err := strconv.Atoi(strings.TrimPrefix(token, "random:"))
		if err != nil {
			return "", perr.ConfigInvalid(fmt.Sprintf("invalid random token %q", token))
		}
		return randomHex(n)
	case token == "hostname":
		h, err := os.Hostname()
		if err != nil {
			return "", perr.ConfigInvalid(err.Error())
		}
		return h, nil
	case strings.HasPrefix(token, "env:"):
		name := strings.TrimPrefix(token, "env:")
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", perr.ConfigInvalid(fmt.Sprintf("env var %q is not set", name))
		}
		return v, nil
	default:
		return "", perr.ConfigInvalid(fmt.Sprintf("unknown path template token %q", token))
	}
}

func randomHex(n int) (string, error) {
	const alphabet = "0123456789abcdef"
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", perr.Io(err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
