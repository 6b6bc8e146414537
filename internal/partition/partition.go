// Package partition splits a service tags dataset into one prefix list per system service.
package partition

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

// Parse decodes a service tags document. The document must be valid JSON whose values field,
// when present, is an array.
func Parse(data []byte) (servicetags.Dataset, error) {
	if !gjson.ValidBytes(data) {
		return servicetags.Dataset{}, fmt.Errorf("%w: dataset is not valid JSON", servicetags.ErrParse)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return servicetags.Dataset{}, fmt.Errorf("%w: dataset is not a JSON object", servicetags.ErrParse)
	}

	var ds servicetags.Dataset
	if cn := root.Get("changeNumber"); cn.Exists() && cn.Type != gjson.Null {
		ds.ChangeNumber = cn.Int()
		ds.HasChangeNumber = true
	}
	ds.Version = root.Get("version").String()

	values := root.Get("values")
	if values.Exists() && !values.IsArray() {
		return servicetags.Dataset{}, fmt.Errorf("%w: values is not an array", servicetags.ErrParse)
	}
	for _, v := range values.Array() {
		props := v.Get("properties")
		if !props.IsObject() {
			continue
		}
		rec := servicetags.Record{
			ID:            v.Get("id").String(),
			Name:          v.Get("name").String(),
			SystemService: props.Get("systemService").String(),
		}
		for _, p := range props.Get("addressPrefixes").Array() {
			rec.AddressPrefixes = append(rec.AddressPrefixes, p.String())
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds, nil
}

// Group collects the prefixes of every record with a non-empty system service. Groups appear in
// the order their service is first seen and prefixes keep dataset order, duplicates included.
func Group(ds servicetags.Dataset) ([]servicetags.ServiceGroup, error) {
	index := make(map[string]int)
	var groups []servicetags.ServiceGroup
	for _, rec := range ds.Records {
		if rec.SystemService == "" {
			continue
		}
		if err := checkServiceName(rec.SystemService); err != nil {
			return nil, err
		}
		i, ok := index[rec.SystemService]
		if !ok {
			i = len(groups)
			index[rec.SystemService] = i
			groups = append(groups, servicetags.ServiceGroup{Service: rec.SystemService})
		}
		groups[i].Prefixes = append(groups[i].Prefixes, rec.AddressPrefixes...)
	}
	return groups, nil
}

func checkServiceName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: service name %q is not a valid file name", servicetags.ErrParse, name)
	}
	return nil
}

// Write stores one <service>.txt per group and returns how many files it wrote.
func Write(ctx context.Context, store servicetags.BlobStore, groups []servicetags.ServiceGroup) (int, error) {
	for i, g := range groups {
		if _, err := store.PutObject(ctx, g.Filename(), "text/plain; charset=utf-8", bytes.NewReader(g.Content())); err != nil {
			return i, fmt.Errorf("write %s: %w", g.Filename(), err)
		}
	}
	return len(groups), nil
}
