// COMOR: Disease Co-occurrence Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://www.gnu.org/licenses/>.

package app

import (
	"encoding/csv"
	"io"
	"os"

	"comor/comat"
)

// headerIndex maps column names onto their positions and reports the required
// columns that are absent.
func headerIndex(header []string, required []string) (map[string]int, []string) {
	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}
	missing := []string{}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	return index, missing
}

// ReadRecords reads a hospital episode diagnosis file. The table must contain
// at least the eid and diag_icd10 columns; any further columns are carried
// along as metadata in input order. A missing required column is a
// SchemaError naming it.
func ReadRecords(path string) (comat.RecordSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return comat.RecordSet{}, err
	}
	defer file.Close()
	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return comat.RecordSet{}, err
	}
	index, missing := headerIndex(header, []string{comat.EIDColumn, comat.CodeColumn})
	if len(missing) > 0 {
		return comat.RecordSet{}, &comat.SchemaError{Source: path, Missing: missing}
	}
	metaFields := []string{}
	for _, name := range header {
		if name != comat.EIDColumn && name != comat.CodeColumn {
			metaFields = append(metaFields, name)
		}
	}
	rs := comat.RecordSet{MetaFields: metaFields}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return comat.RecordSet{}, err
		}
		meta := map[string]string{}
		for _, name := range metaFields {
			meta[name] = record[index[name]]
		}
		rs.Records = append(rs.Records, comat.DiagnosisRecord{
			EID:  record[index[comat.EIDColumn]],
			Code: record[index[comat.CodeColumn]],
			Meta: meta,
		})
	}
	return rs, nil
}

// ReadMetadata reads a participant metadata file (age, sex, ...), keyed by
// EID. It must contain the eid column and every field referenced by the group
// definitions; missing columns are a SchemaError naming them. Later rows with
// a repeated EID overwrite earlier ones.
func ReadMetadata(path string, requiredFields []string) (*comat.Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	required := append([]string{comat.EIDColumn}, requiredFields...)
	index, missing := headerIndex(header, required)
	if len(missing) > 0 {
		return nil, &comat.SchemaError{Source: path, Missing: missing}
	}
	fields := []string{}
	for _, name := range header {
		if name != comat.EIDColumn {
			fields = append(fields, name)
		}
	}
	metadata := &comat.Metadata{Fields: fields, Rows: map[string]map[string]string{}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := map[string]string{}
		for _, name := range fields {
			row[name] = record[index[name]]
		}
		metadata.Rows[record[index[comat.EIDColumn]]] = row
	}
	return metadata, nil
}

// WriteRecords writes a record set as a rectangular table with columns eid,
// diag_icd10, and the retained metadata fields, one row per diagnosis record.
func WriteRecords(path string, rs comat.RecordSet) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	writer := csv.NewWriter(file)
	defer writer.Flush()
	header := append([]string{comat.EIDColumn, comat.CodeColumn}, rs.MetaFields...)
	if err := writer.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, r := range rs.Records {
		row[0] = r.EID
		row[1] = r.Code
		for i, name := range rs.MetaFields {
			row[i+2] = r.Meta[name]
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}
