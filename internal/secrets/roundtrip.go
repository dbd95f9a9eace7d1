package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/nimbleci/shipctl/internal/process"
	"github.com/nimbleci/shipctl/internal/yamldoc"
)

func base64Decode(raw string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("base64-decoding secret value: %w", err)
	}
	return string(decoded), nil
}

const unsealedSuffix = ".unsealed.yaml"

// SealSecrets reads every envs/<env>/secrets/*.unsealed.yaml, base64-
// encodes then seals it, and writes the result alongside as
// envs/<env>/secrets/<name>.yaml.
//
// When onlyChanged is set, and a previously sealed file exists at that
// destination, the prior file is unsealed with masterKey first; for any
// data key whose decoded plaintext is unchanged since that prior seal,
// the new document's ciphertext for that key is replaced with the prior
// ciphertext, so an unrelated edit elsewhere in the file doesn't churn
// every secret value in the diff.
func SealSecrets(ctx context.Context, runner *process.Runner, fs afero.Fs, env, cert, masterKey string, onlyChanged bool) ([]string, error) {
	dir := filepath.Join("envs", env, "secrets")
	unsealedFiles, err := afero.Glob(fs, filepath.Join(dir, "*"+unsealedSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(unsealedFiles)

	var written []string
	for _, unsealedPath := range unsealedFiles {
		plain, err := afero.ReadFile(fs, unsealedPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", unsealedPath, err)
		}

		encoded, err := Base64EncodeSecrets(plain)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", unsealedPath, err)
		}

		sealed, err := KubeSeal(ctx, runner, encoded, cert)
		if err != nil {
			return nil, fmt.Errorf("sealing %s: %w", unsealedPath, err)
		}

		sealedPath := strings.TrimSuffix(unsealedPath, unsealedSuffix) + ".yaml"

		if onlyChanged {
			sealed, err = revertUnchangedCiphertext(ctx, runner, fs, sealedPath, sealed, plain, cert, masterKey)
			if err != nil {
				return nil, fmt.Errorf("reverting unchanged ciphertext for %s: %w", sealedPath, err)
			}
		}

		if err := afero.WriteFile(fs, sealedPath, sealed, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", sealedPath, err)
		}
		written = append(written, sealedPath)
	}

	return written, nil
}

// UnsealSecrets reads every envs/<env>/secrets/*.yaml, unseals it with
// masterKey and base64-decodes the result, writing
// envs/<env>/secrets/<name>.unsealed.yaml alongside the sealed original.
func UnsealSecrets(ctx context.Context, runner *process.Runner, fs afero.Fs, env, cert, masterKey string) ([]string, error) {
	dir := filepath.Join("envs", env, "secrets")
	sealedFiles, err := afero.Glob(fs, filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(sealedFiles)

	var written []string
	for _, sealedPath := range sealedFiles {
		if strings.HasSuffix(sealedPath, unsealedSuffix) {
			continue
		}

		sealed, err := afero.ReadFile(fs, sealedPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", sealedPath, err)
		}

		plainEncoded, err := KubeUnseal(ctx, runner, sealed, masterKey, cert)
		if err != nil {
			return nil, fmt.Errorf("unsealing %s: %w", sealedPath, err)
		}

		plain, err := Base64DecodeSecrets(plainEncoded)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", sealedPath, err)
		}

		unsealedPath := strings.TrimSuffix(sealedPath, ".yaml") + unsealedSuffix
		if err := afero.WriteFile(fs, unsealedPath, plain, 0o600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", unsealedPath, err)
		}
		written = append(written, unsealedPath)
	}

	return written, nil
}

// revertUnchangedCiphertext compares the plaintext data values of a
// freshly sealed document against the prior sealed document (unsealed
// for comparison), substituting back the prior ciphertext wherever the
// plaintext is unchanged.
func revertUnchangedCiphertext(ctx context.Context, runner *process.Runner, fs afero.Fs, priorPath string, freshSealed, freshPlain []byte, cert, masterKey string) ([]byte, error) {
	exists, err := afero.Exists(fs, priorPath)
	if err != nil || !exists {
		return freshSealed, err
	}

	priorSealed, err := afero.ReadFile(fs, priorPath)
	if err != nil {
		return nil, err
	}

	priorPlainEncoded, err := KubeUnseal(ctx, runner, priorSealed, masterKey, cert)
	if err != nil {
		return nil, fmt.Errorf("unsealing prior %s: %w", priorPath, err)
	}
	priorDecoded, err := dataValues(priorPlainEncoded, true)
	if err != nil {
		return nil, err
	}

	freshDecoded, err := dataValues(freshPlain, false)
	if err != nil {
		return nil, err
	}

	priorCiphertext, err := dataValues(priorSealed, false)
	if err != nil {
		return nil, err
	}

	return substituteUnchanged(freshSealed, priorDecoded, freshDecoded, priorCiphertext)
}

// dataValues returns the data mapping of a single Secret document as
// plain strings, base64-decoding each entry first when decode is set.
func dataValues(content []byte, decode bool) (map[string]string, error) {
	docs, err := yamldoc.LoadBytes(content)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("expected exactly one document, found %d", len(docs))
	}
	root := yamldoc.UnwrapDocument(docs[0])
	data := yamldoc.Get(root, "data")
	if data == nil || data.Kind != yaml.MappingNode {
		return map[string]string{}, nil
	}

	values := map[string]string{}
	for i := 0; i+1 < len(data.Content); i += 2 {
		key := data.Content[i].Value
		value := data.Content[i+1]
		if value.Kind != yaml.ScalarNode || value.Tag == "!!null" {
			continue
		}
		if !decode {
			values[key] = value.Value
			continue
		}
		decoded, err := base64Decode(value.Value)
		if err != nil {
			return nil, err
		}
		values[key] = decoded
	}
	return values, nil
}

// substituteUnchanged rewrites fresh's data values in place with
// priorCiphertext wherever freshDecoded[key] == priorDecoded[key].
func substituteUnchanged(fresh []byte, priorDecoded, freshDecoded, priorCiphertext map[string]string) ([]byte, error) {
	docs, err := yamldoc.LoadBytes(fresh)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("expected exactly one document, found %d", len(docs))
	}
	root := yamldoc.UnwrapDocument(docs[0])
	data := yamldoc.Get(root, "data")
	if data == nil || data.Kind != yaml.MappingNode {
		return fresh, nil
	}

	for i := 0; i+1 < len(data.Content); i += 2 {
		key := data.Content[i].Value
		value := data.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			continue
		}
		if priorDecoded[key] != freshDecoded[key] {
			continue
		}
		ciphertext, ok := priorCiphertext[key]
		if !ok {
			continue
		}
		value.Value = ciphertext
	}

	return yamldoc.DumpBytes(docs)
}
