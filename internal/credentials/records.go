package credentials

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// ParseRecords decodes the record file format.
//
// Each line holds one credential as SSID, a single tab, then the password.
// Blank lines are skipped. A line with no tab is the legacy layout: that line
// is the SSID and the following line is its password. One legacy record is
// accepted and parsing stops there. Records with an empty SSID are dropped.
//
// An error means the data cannot be trusted, for example a line longer than
// MaxRecordLength, and no credentials are returned.
func ParseRecords(data []byte) ([]Credential, error) {
	var creds []Credential

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 512), MaxRecordLength+2)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		ssid, password, found := strings.Cut(line, "\t")
		if found && ssid == "" {
			continue
		}
		if !found {
			ssid = strings.TrimSpace(line)
			password = ""
			if scanner.Scan() {
				password = strings.TrimSpace(scanner.Text())
			}
			creds = append(creds, Credential{SSID: ssid, Password: password})
			break
		}

		creds = append(creds, Credential{SSID: ssid, Password: password})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return creds, nil
}

// EncodeRecords encodes credentials in the tab-delimited record format
func EncodeRecords(creds []Credential) []byte {
	var buf bytes.Buffer
	for _, c := range creds {
		buf.WriteString(c.SSID)
		buf.WriteByte('\t')
		buf.WriteString(c.Password)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
