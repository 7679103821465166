package commerce

import (
	"bytes"
	"embed"
	"fmt"
	"path"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/integration"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// topicSchemas maps each topic to its embedded schema file
var topicSchemas = map[integration.Topic]string{
	integration.TopicSubscriptionCreated:  "subscription_contract.json",
	integration.TopicSubscriptionUpdated:  "subscription_contract.json",
	integration.TopicBillingSuccess:       "billing_attempt.json",
	integration.TopicBillingFailure:       "billing_attempt.json",
	integration.TopicPaymentMethodRevoked: "payment_method.json",
	integration.TopicPaymentMethodCreated: "payment_method.json",
}

// PayloadValidator checks webhook bodies against the compiled per-topic schemas
type PayloadValidator struct {
	schemas map[integration.Topic]*jsonschema.Schema
}

// NewPayloadValidator compiles every embedded schema
func NewPayloadValidator() (*PayloadValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiled := make(map[string]*jsonschema.Schema)
	v := &PayloadValidator{schemas: make(map[integration.Topic]*jsonschema.Schema, len(topicSchemas))}

	for topic, file := range topicSchemas {
		if sch, ok := compiled[file]; ok {
			v.schemas[topic] = sch
			continue
		}
		raw, err := schemaFS.ReadFile(path.Join("schemas", file))
		if err != nil {
			return nil, fmt.Errorf("commerce: read schema %s: %w", file, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("commerce: parse schema %s: %w", file, err)
		}
		url := "mem://schemas/" + file
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("commerce: add schema %s: %w", file, err)
		}
		sch, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("commerce: compile schema %s: %w", file, err)
		}
		compiled[file] = sch
		v.schemas[topic] = sch
	}
	return v, nil
}

// Validate returns an error wrapping integration.ErrInvalidPayload when body does not match the topic
func (v *PayloadValidator) Validate(topic integration.Topic, body []byte) error {
	sch, ok := v.schemas[topic]
	if !ok {
		return integration.ErrUnknownTopic
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", integration.ErrInvalidPayload, err)
	}
	return nil
}
