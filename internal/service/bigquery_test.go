package service_test

import (
	"reflect"
	"testing"

	"cloud.google.com/go/bigquery"

	"github.com/cortexai/analytics/internal/service"
)

func TestSchemaColumns(t *testing.T) {
	schema := bigquery.Schema{
		{Name: "Fecha", Type: bigquery.DateFieldType},
		{Name: "banco_nombre", Type: bigquery.StringFieldType},
		{Name: "IMOR", Type: bigquery.FloatFieldType},
		{Name: "detalle", Type: bigquery.RecordFieldType, Schema: bigquery.Schema{{Name: "x", Type: bigquery.StringFieldType}}},
	}
	want := []string{"fecha", "banco_nombre", "imor"}
	if got := service.SchemaColumns(schema); !reflect.DeepEqual(got, want) {
		t.Errorf("SchemaColumns() = %v, want %v", got, want)
	}
}
