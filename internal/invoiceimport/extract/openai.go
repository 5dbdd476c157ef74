package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared/constant"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const extractionTimeout = 45 * time.Second

// OpenAI calls an external vision-capable structured-extraction model. Image content types
// are sent as inline vision input; anything else is sent as plain text best-effort, since
// this service carries no PDF-rendering dependency of its own.
type OpenAI struct {
	client *openai.Client
	model  openai.ChatModel
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(3)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: openai.ChatModelGPT4o}
}

func (o *OpenAI) Extract(ctx context.Context, filename, contentType string, raw []byte) (*Invoice, []byte, error) {
	if len(raw) == 0 {
		return nil, nil, errors.New("extract: empty document")
	}
	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	schema, err := invoiceSchema()
	if err != nil {
		return nil, nil, fmt.Errorf("extract: build schema: %w", err)
	}

	const prompt = "Read this supplier invoice document and extract every line item exactly " +
		"as printed. Do not infer items that aren't on the document, and do not merge distinct lines."

	var input responses.ResponseNewParamsInputUnion
	if isImageContentType(contentType) {
		dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(raw))
		contentList := responses.ResponseInputMessageContentListParam{
			responses.ResponseInputContentParamOfInputText(prompt),
			responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					Detail:   responses.ResponseInputImageDetailAuto,
					ImageURL: param.NewOpt(dataURL),
				},
			},
		}
		input = responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(contentList, responses.EasyInputMessageRoleUser),
			},
		}
	} else {
		input = responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt + "\n\nDocument text:\n" + string(raw)),
		}
	}

	params := responses.ResponseNewParams{
		Model: o.model,
		Input: input,
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "supplier_invoice_extraction",
					Strict:      openai.Bool(true),
					Schema:      schema,
					Description: openai.String("Structured line items read off a supplier invoice document"),
				},
			},
		},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, nil, fmt.Errorf("extract: openai responses error %d: %w", apiErr.StatusCode, err)
		}
		return nil, nil, fmt.Errorf("extract: openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, nil, errors.New("extract: empty completion content")
	}

	stamped, err := sjson.SetBytes([]byte(content), "_extractor.model", string(o.model))
	if err != nil {
		stamped = []byte(content)
	}
	stamped, err = sjson.SetBytes(stamped, "_extractor.response_id", resp.ID)
	if err != nil {
		stamped = []byte(content)
	}

	inv := &Invoice{
		SupplierNameGuess: gjson.GetBytes(stamped, "supplier_name_guess").String(),
		InvoiceNoGuess:    gjson.GetBytes(stamped, "invoice_no_guess").String(),
	}
	for _, lr := range gjson.GetBytes(stamped, "lines").Array() {
		inv.Lines = append(inv.Lines, Line{
			SupplierItemCode: lr.Get("supplier_item_code").String(),
			SupplierItemName: lr.Get("supplier_item_name").String(),
			Qty:              lr.Get("qty").String(),
			UnitCostUSD:      lr.Get("unit_cost_usd").String(),
			UnitCostLBP:      lr.Get("unit_cost_lbp").String(),
		})
	}

	return inv, stamped, nil
}

func isImageContentType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	default:
		return false
	}
}
