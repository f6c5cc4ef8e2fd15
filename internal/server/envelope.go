package server

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/mattjoyce/hookgate/internal/callback"
)

// BodyFormat is the transport framing an integration used to carry the
// ciphertext. The crypto core never sees it; replies reuse the request's
// framing.
type BodyFormat string

const (
	FormatJSON BodyFormat = "json"
	FormatXML  BodyFormat = "xml"
)

type jsonEnvelope struct {
	Encrypt string `json:"encrypt"`
}

type xmlEnvelope struct {
	XMLName xml.Name `xml:"xml"`
	Encrypt string   `xml:"Encrypt"`
}

// ExtractCipher pulls the base64 ciphertext out of a request body,
// autodetecting JSON vs XML framing.
func ExtractCipher(body []byte) (cipher string, format BodyFormat, err error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", "", fmt.Errorf("empty request body")
	}

	if strings.HasPrefix(trimmed, "<") {
		var env xmlEnvelope
		if err := xml.Unmarshal([]byte(trimmed), &env); err != nil {
			return "", "", fmt.Errorf("malformed xml envelope: %w", err)
		}
		if env.Encrypt == "" {
			return "", "", fmt.Errorf("xml envelope missing Encrypt element")
		}
		return env.Encrypt, FormatXML, nil
	}

	var env jsonEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return "", "", fmt.Errorf("malformed json envelope: %w", err)
	}
	if env.Encrypt == "" {
		return "", "", fmt.Errorf("json envelope missing encrypt field")
	}
	return env.Encrypt, FormatJSON, nil
}

type jsonReply struct {
	Encrypt      string `json:"encrypt"`
	MsgSignature string `json:"msgsignature"`
	Timestamp    string `json:"timestamp"`
	Nonce        string `json:"nonce"`
}

type xmlReply struct {
	XMLName      xml.Name `xml:"xml"`
	Encrypt      cdata    `xml:"Encrypt"`
	MsgSignature cdata    `xml:"MsgSignature"`
	TimeStamp    string   `xml:"TimeStamp"`
	Nonce        cdata    `xml:"Nonce"`
}

// cdata marshals its value inside a CDATA section, the way counterparty
// samples frame XML reply fields.
type cdata struct {
	Value string `xml:",cdata"`
}

// MarshalReply renders an encrypted reply envelope in the requested framing.
func MarshalReply(env *callback.ReplyEnvelope, format BodyFormat) ([]byte, string, error) {
	switch format {
	case FormatXML:
		out, err := xml.Marshal(xmlReply{
			Encrypt:      cdata{env.Encrypt},
			MsgSignature: cdata{env.Signature},
			TimeStamp:    env.Timestamp,
			Nonce:        cdata{env.Nonce},
		})
		if err != nil {
			return nil, "", err
		}
		return out, "application/xml", nil
	default:
		out, err := json.Marshal(jsonReply{
			Encrypt:      env.Encrypt,
			MsgSignature: env.Signature,
			Timestamp:    env.Timestamp,
			Nonce:        env.Nonce,
		})
		if err != nil {
			return nil, "", err
		}
		return out, "application/json", nil
	}
}
