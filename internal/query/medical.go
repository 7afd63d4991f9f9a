package query

import (
	"strings"

	"github.com/healthbot/backend/internal/llm"
)

const (
	patientRefusal = "I apologize, but I can only answer questions related to medical reports and health information. Please ask me about your medical report, test results, medications, symptoms, or other health-related topics. For non-medical questions, I recommend consulting other appropriate resources."
	doctorRefusal  = "I apologize, but I can only provide clinical analysis for medical-related queries. Please ask me about medical reports, clinical findings, diagnoses, treatments, or other healthcare-related topics. For non-medical questions, I recommend consulting other appropriate resources."
)

// medicalKeywords are matched as substrings of the lowercased query, so "ct" also matches
// inside longer words.
var medicalKeywords = []string{
	"medical", "health", "doctor", "patient", "diagnosis", "treatment", "symptoms",
	"medication", "medicine", "prescription", "test", "lab", "blood", "urine",
	"x-ray", "scan", "mri", "ct", "ultrasound", "biopsy", "surgery", "procedure",
	"condition", "disease", "illness", "infection", "pain", "fever", "cough",
	"headache", "nausea", "vomiting", "diarrhea", "constipation", "fatigue",
	"weakness", "dizziness", "chest pain", "shortness of breath", "swelling",
	"rash", "bruise", "wound", "injury", "fracture", "sprain", "strain",
	"chronic", "acute", "allergy", "asthma", "diabetes", "hypertension",
	"heart", "lung", "liver", "kidney", "brain", "cancer", "tumor",
	"report", "results", "findings", "normal", "abnormal", "elevated", "decreased",
	"positive", "negative", "high", "low", "range", "level", "count",
	"pressure", "temperature", "pulse", "heart rate", "blood pressure",
	"weight", "height", "bmi", "cholesterol", "glucose", "hemoglobin",
	"white blood cell", "red blood cell", "platelet", "protein", "albumin",
	"bilirubin", "creatinine", "bun", "sodium", "potassium", "chloride",
	"calcium", "magnesium", "phosphate", "vitamin", "mineral", "hormone",
	"thyroid", "adrenal", "pituitary", "pancreas", "gallbladder", "spleen",
	"lymph node", "immune", "antibody", "antigen", "vaccine", "immunization",
	"pregnancy", "obstetric", "gynecologic", "menstrual", "fertility",
	"pediatric", "geriatric", "psychiatric", "mental", "depression", "anxiety",
	"stress", "sleep", "appetite", "digestion", "metabolism", "endocrine",
	"neurological", "spinal", "nervous", "musculoskeletal", "joint", "bone",
	"muscle", "tendon", "ligament", "skin", "dermatological", "dental", "oral",
	"ophthalmic", "eye", "ear", "nose", "throat", "respiratory", "cardiovascular",
	"gastrointestinal", "genitourinary", "reproductive", "oncology", "radiology",
	"pathology", "pharmacy", "pharmacology", "therapeutic", "dosage",
	"side effect", "interaction", "contraindication", "precaution", "monitoring",
	"follow-up", "prognosis", "outcome", "recovery", "rehabilitation", "therapy",
	"counseling",
}

func IsMedicalQuery(q string) bool {
	q = strings.ToLower(q)
	for _, kw := range medicalKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func Refusal(p llm.Perspective) string {
	if p == llm.PerspectiveDoctor {
		return doctorRefusal
	}
	return patientRefusal
}
