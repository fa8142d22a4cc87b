package rules

import "github.com/certhours/cert-hours-api/internal/models"

// DefaultCategories is the bootstrap rule set applied when the
// activity_categories table is empty. Coordinators adjust the rows directly
// in the database; the snapshot is rebuilt on the next startup.
func DefaultCategories() []models.ActivityCategory {
	return []models.ActivityCategory{
		{
			Name:            "Palestras, Seminários e Congressos",
			Description:     "Participação como ouvinte em eventos acadêmicos",
			CalculationType: models.CalcRatioHours,
			InputUnit:       "horas",
			InputQuantity:   2,
			OutputHours:     1,
			MaxTotalHours:   30,
		},
		{
			Name:            "Cursos de Extensão",
			Description:     "Cursos livres e de extensão na área do curso",
			CalculationType: models.CalcRatioHours,
			InputUnit:       "horas",
			InputQuantity:   1,
			OutputHours:     1,
			MaxTotalHours:   40,
		},
		{
			Name:            "Monitoria",
			Description:     "Monitoria acadêmica com supervisão docente",
			CalculationType: models.CalcFixedPerSemester,
			InputUnit:       "semestre",
			InputQuantity:   1,
			OutputHours:     20,
			MaxTotalHours:   40,
		},
		{
			Name:            "Iniciação Científica",
			Description:     "Projeto de pesquisa com orientação docente",
			CalculationType: models.CalcFixedPerSemester,
			InputUnit:       "semestre",
			InputQuantity:   1,
			OutputHours:     30,
			MaxTotalHours:   60,
		},
		{
			Name:            "Representação Estudantil",
			Description:     "Mandato em órgão colegiado ou centro acadêmico",
			CalculationType: models.CalcFixedPerSemester,
			InputUnit:       "semestre",
			InputQuantity:   1,
			OutputHours:     10,
			MaxTotalHours:   20,
		},
		{
			Name:            "Visitas Técnicas",
			Description:     "Visitas técnicas organizadas pela instituição",
			CalculationType: models.CalcRatioDays,
			InputUnit:       "dias",
			InputQuantity:   1,
			OutputHours:     4,
			MaxTotalHours:   16,
		},
		{
			Name:            "Publicação de Artigos",
			Description:     "Artigo publicado em periódico ou anais de evento",
			CalculationType: models.CalcFixedPerActivity,
			InputUnit:       "publicação",
			InputQuantity:   1,
			OutputHours:     15,
			MaxTotalHours:   30,
		},
		{
			Name:            "Resenhas e Traduções",
			Description:     "Resenha ou tradução de material técnico",
			CalculationType: models.CalcRatioPages,
			InputUnit:       "páginas",
			InputQuantity:   10,
			OutputHours:     5,
			MaxTotalHours:   20,
		},
	}
}
