package catalog

import "github.com/cortexai/analytics/internal/analytics"

const DefaultFactTable = "monthly_kpis"

// DefaultConfig is the built-in catalog for the monthly banking KPI table.
// A JSON catalog file is decoded on top of it.
func DefaultConfig() Config {
	return Config{
		FactTable:     DefaultFactTable,
		AllowedTables: []string{DefaultFactTable},
		Columns: []string{
			"fecha", "banco_nombre",
			"imor", "icor", "icap", "roa_12m", "roe_12m",
			"activo_total",
			"cartera_total", "cartera_vencida",
			"cartera_comercial_total", "cartera_comercial_sin_gob",
			"cartera_consumo_total", "cartera_vivienda_total",
			"captacion_total", "captacion_vista", "captacion_plazo",
			"market_share_cartera",
		},
		MetricAliases: map[string][]string{
			"IMOR":            {"indice de morosidad", "morosidad", "indice de cartera vencida"},
			"ICOR":            {"indice de cobertura", "cobertura"},
			"ICAP":            {"indice de capitalizacion", "capitalizacion", "capital regulatorio"},
			"ROA":             {"rentabilidad sobre activos", "retorno sobre activos"},
			"ROE":             {"rentabilidad sobre capital", "retorno sobre capital", "rentabilidad"},
			"ACTIVO_TOTAL":    {"activos totales", "activos"},
			"CARTERA_VENCIDA": {"cartera en mora"},
			"MARKET_SHARE":    {"participacion de mercado", "cuota de mercado", "participacion"},
		},
		MetricFamilies: []MetricFamily{
			{
				Prefix:  "CARTERA",
				Aliases: []string{"cartera", "cartera de credito", "creditos", "credito", "prestamos"},
				Members: map[string]string{
					"comercial":              "COMERCIAL",
					"empresarial":            "COMERCIAL",
					"empresas":               "COMERCIAL",
					"comercial sin gobierno": "COMERCIAL_SIN_GOB",
					"consumo":                "CONSUMO",
					"vivienda":               "VIVIENDA",
					"hipotecaria":            "VIVIENDA",
					"hipotecario":            "VIVIENDA",
					"total":                  "TOTAL",
				},
				Default: "TOTAL",
			},
			{
				Prefix:  "CAPTACION",
				Aliases: []string{"captacion", "depositos"},
				Members: map[string]string{
					"vista":      "VISTA",
					"a la vista": "VISTA",
					"plazo":      "PLAZO",
					"a plazo":    "PLAZO",
					"total":      "TOTAL",
				},
				Default: "TOTAL",
			},
		},
		DistributionMetrics: []string{"MARKET_SHARE"},
		BankAliases: map[string][]string{
			"INVEX":      {"banco invex"},
			"SISTEMA":    {"sistema bancario", "sector", "sector bancario", "total sistema"},
			"BBVA":       {"bancomer", "bbva mexico"},
			"BANORTE":    {"banco banorte"},
			"SANTANDER":  {"banco santander"},
			"BANAMEX":    {"citibanamex", "citi"},
			"HSBC":       {},
			"SCOTIABANK": {"scotia"},
			"INBURSA":    {},
			"BANREGIO":   {},
			"BANBAJIO":   {"bajio"},
			"AZTECA":     {"banco azteca"},
			"BANCOPPEL":  {"coppel"},
		},
		MetricDefinitions: []analytics.MetricDefinition{
			{MetricName: "IMOR", PreferredColumns: []string{"imor"}, Description: "Indice de morosidad: cartera vencida / cartera total"},
			{MetricName: "ICOR", PreferredColumns: []string{"icor"}, Description: "Indice de cobertura: estimaciones preventivas / cartera vencida"},
			{MetricName: "ICAP", PreferredColumns: []string{"icap"}, Description: "Indice de capitalizacion regulatorio"},
			{MetricName: "ROA", PreferredColumns: []string{"roa_12m"}, Description: "Rentabilidad sobre activos, ultimos 12 meses"},
			{MetricName: "ROE", PreferredColumns: []string{"roe_12m"}, Description: "Rentabilidad sobre capital, ultimos 12 meses"},
			{MetricName: "MARKET_SHARE", PreferredColumns: []string{"market_share_cartera"}, Description: "Participacion de cada banco en la cartera total del sistema"},
			{MetricName: "CARTERA_TOTAL", PreferredColumns: []string{"cartera_total"}, Description: "Cartera de credito total en millones de pesos"},
		},
		ExampleQueries: []analytics.ExampleQuery{
			{
				NL:     "IMOR de INVEX en los ultimos 12 meses",
				SQL:    "SELECT fecha, banco_nombre, imor FROM monthly_kpis WHERE banco_nombre = 'INVEX' AND fecha >= NOW() - INTERVAL '12 months' ORDER BY fecha ASC",
				Metric: "IMOR",
			},
			{
				NL:     "Compara el ICAP de BBVA y Banorte en 2023",
				SQL:    "SELECT fecha, banco_nombre, icap FROM monthly_kpis WHERE banco_nombre IN ('BBVA', 'BANORTE') AND fecha BETWEEN '2023-01-01' AND '2023-12-31' ORDER BY fecha ASC, banco_nombre",
				Metric: "ICAP",
			},
			{
				NL:     "ROE promedio del sistema",
				SQL:    "SELECT AVG(roe_12m), MIN(roe_12m), MAX(roe_12m) FROM monthly_kpis WHERE banco_nombre = 'SISTEMA'",
				Metric: "ROE",
			},
			{
				NL:     "Evolucion de la cartera comercial de Santander",
				SQL:    "SELECT fecha, banco_nombre, cartera_comercial_total FROM monthly_kpis WHERE banco_nombre = 'SANTANDER' ORDER BY fecha ASC",
				Metric: "CARTERA_COMERCIAL",
			},
			{
				NL:     "Participacion de mercado por banco en el ultimo ano",
				SQL:    "SELECT fecha, banco_nombre, market_share_cartera FROM monthly_kpis WHERE fecha >= NOW() - INTERVAL '12 months' ORDER BY fecha ASC, banco_nombre",
				Metric: "MARKET_SHARE",
			},
		},
		SchemaSnippets: []analytics.SchemaSnippet{
			{ColumnName: "fecha", Description: "Fecha de corte mensual (primer dia del mes)"},
			{ColumnName: "banco_nombre", Description: "Nombre canonico del banco, SISTEMA para el agregado"},
			{ColumnName: "imor", Description: "Indice de morosidad en porcentaje"},
			{ColumnName: "icor", Description: "Indice de cobertura en porcentaje"},
			{ColumnName: "icap", Description: "Indice de capitalizacion en porcentaje"},
			{ColumnName: "roa_12m", Description: "ROA anualizado a 12 meses"},
			{ColumnName: "roe_12m", Description: "ROE anualizado a 12 meses"},
			{ColumnName: "activo_total", Description: "Activo total en millones de pesos"},
			{ColumnName: "cartera_total", Description: "Cartera de credito total"},
			{ColumnName: "cartera_vencida", Description: "Cartera vencida total"},
			{ColumnName: "cartera_comercial_total", Description: "Cartera comercial incluyendo gobierno"},
			{ColumnName: "cartera_comercial_sin_gob", Description: "Cartera comercial sin entidades gubernamentales"},
			{ColumnName: "cartera_consumo_total", Description: "Cartera de consumo"},
			{ColumnName: "cartera_vivienda_total", Description: "Cartera de vivienda"},
			{ColumnName: "captacion_total", Description: "Captacion total"},
			{ColumnName: "captacion_vista", Description: "Depositos de exigibilidad inmediata"},
			{ColumnName: "captacion_plazo", Description: "Depositos a plazo"},
			{ColumnName: "market_share_cartera", Description: "Participacion en la cartera total del sistema"},
		},
	}
}

// Default builds the built-in catalog. It panics only if DefaultConfig is broken.
func Default() *Catalog {
	c, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return c
}
