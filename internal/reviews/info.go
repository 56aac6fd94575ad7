package reviews

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"

	"review-backend/internal/shared/server/respond"
)

const serviceVersion = "1.0.0"

//go:embed methodology.md
var methodologyDoc string

func (h *Handler) methodology(c *gin.Context) {
	c.Header("Content-Type", "text/markdown; charset=utf-8")
	c.String(http.StatusOK, methodologyDoc)
}

func (h *Handler) about(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{
		"service":      "review-backend",
		"methodology":  "Sequential Persona Review",
		"version":      serviceVersion,
		"architecture": "Three-persona pipeline (innovation, ethics, security)",
		"personas": gin.H{
			PersonaInnovation.ID(): gin.H{
				"name":  InnovationAgentName,
				"role":  "Innovation and Strategy Review",
				"focus": []string{"Innovation potential", "Strategic value", "Market opportunities"},
			},
			PersonaEthics.ID(): gin.H{
				"name":           EthicsAgentName,
				"role":           "Ethical Review and Charter Enforcement",
				"focus":          []string{"Ethics", "Privacy", "Bias", "Social impact"},
				"has_veto_power": true,
			},
			PersonaSecurity.ID(): gin.H{
				"name":  SecurityAgentName,
				"role":  "Security Validation and Socratic Interrogation",
				"focus": []string{"Security vulnerabilities", "Attack vectors", "Socratic questioning"},
			},
		},
	})
}
