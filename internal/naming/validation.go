package naming

import (
	"fmt"
	"sort"
	"strings"

	utilvalidation "k8s.io/apimachinery/pkg/util/validation"
)

// ValidateNamespace checks name is a valid namespace (DNS-1123 label).
func ValidateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if errs := utilvalidation.IsDNS1123Label(name); len(errs) > 0 {
		return fmt.Errorf("invalid namespace %q: %s", name, strings.Join(errs, ", "))
	}
	return nil
}

// ValidateLabels checks every key is a qualified name and every value a valid label value.
func ValidateLabels(labels map[string]string) error {
	for _, k := range sortedKeys(labels) {
		if errs := utilvalidation.IsQualifiedName(k); len(errs) > 0 {
			return fmt.Errorf("invalid label key %q: %s", k, strings.Join(errs, ", "))
		}
		if errs := utilvalidation.IsValidLabelValue(labels[k]); len(errs) > 0 {
			return fmt.Errorf("invalid value for label %q: %s", k, strings.Join(errs, ", "))
		}
	}
	return nil
}

// ValidateAnnotationKeys checks every annotation key is a qualified name.
// Annotation values are free-form.
func ValidateAnnotationKeys(annotations map[string]string) error {
	for _, k := range sortedKeys(annotations) {
		if errs := utilvalidation.IsQualifiedName(strings.ToLower(k)); len(errs) > 0 {
			return fmt.Errorf("invalid annotation key %q: %s", k, strings.Join(errs, ", "))
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
